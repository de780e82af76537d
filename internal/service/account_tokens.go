package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mpcoop/portal/internal/auth"
	"github.com/mpcoop/portal/internal/mail"
	"github.com/mpcoop/portal/internal/repo"
	"github.com/mpcoop/portal/internal/util"
)

// Tokens de uso único não passam pelo ledger: sub carrega o e-mail e
// user_id o principal. Valem até a expiração.

// IssueActivationToken gera token de ativação de conta.
func (s *AuthService) IssueActivationToken(p repo.Principal) (string, error) {
	return s.issueSinglePurpose(auth.TokenActivation, p, s.opts.ActivationTTL)
}

// IssueUnsubscribeToken gera token de cancelamento de inscrição.
func (s *AuthService) IssueUnsubscribeToken(p repo.Principal) (string, error) {
	return s.issueSinglePurpose(auth.TokenUnsubscribe, p, s.opts.UnsubscribeTTL)
}

// IssueResetToken gera token de redefinição de senha.
func (s *AuthService) IssueResetToken(p repo.Principal) (string, error) {
	return s.issueSinglePurpose(auth.TokenReset, p, s.opts.ResetTTL)
}

// SendActivation envia (ou reenvia) o link de ativação para o principal.
func (s *AuthService) SendActivation(ctx context.Context, principalID uuid.UUID) error {
	principal, err := s.repo.GetPrincipalByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return auth.ErrPrincipalNotFound
		}
		return storeUnavailable(err)
	}

	activation, err := s.IssueActivationToken(principal)
	if err != nil {
		return err
	}
	unsubscribe, err := s.IssueUnsubscribeToken(principal)
	if err != nil {
		return err
	}

	return s.notifier.Send(ctx, mail.Message{
		Kind:            mail.KindActivation,
		To:              principal.Email,
		Link:            s.links.Activation(principal.Email, activation),
		UnsubscribeLink: s.links.Unsubscribe(principal.Email, unsubscribe),
	})
}

// ActivateAccount consome o token de ativação e marca a conta como ativa.
func (s *AuthService) ActivateAccount(ctx context.Context, email, token string) (err error) {
	defer func() { s.metrics.AuthEvent("activate", err) }()

	if err := util.RequireString(email, "email"); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	id, err := s.consume(token, auth.TokenActivation, email)
	if err != nil {
		return err
	}
	return s.updatePrincipal(s.repo.SetPrincipalActive(ctx, id, true))
}

// Unsubscribe consome o token e remove o principal da lista de e-mails.
func (s *AuthService) Unsubscribe(ctx context.Context, email, token string) (err error) {
	defer func() { s.metrics.AuthEvent("unsubscribe", err) }()

	if err := util.RequireString(email, "email"); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	id, err := s.consume(token, auth.TokenUnsubscribe, email)
	if err != nil {
		return err
	}
	return s.updatePrincipal(s.repo.SetPrincipalSubscribed(ctx, id, false))
}

// RequestPasswordReset envia link de redefinição. E-mail desconhecido não é
// informado ao chamador.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (err error) {
	defer func() { s.metrics.AuthEvent("forgot_password", err) }()

	if err := util.ValidateEmail(email); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	principal, err := s.repo.GetPrincipalByEmail(ctx, util.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Info().Msg("forgot-password: e-mail sem cadastro")
			return nil
		}
		return storeUnavailable(err)
	}

	token, err := s.IssueResetToken(principal)
	if err != nil {
		return err
	}
	return s.notifier.Send(ctx, mail.Message{
		Kind: mail.KindPasswordReset,
		To:   principal.Email,
		Link: s.links.PasswordReset(token),
	})
}

// ResetPassword consome o token de redefinição e grava a nova senha com salt novo.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	defer func() { s.metrics.AuthEvent("reset_password", err) }()

	id, err := s.consume(token, auth.TokenReset, "")
	if err != nil {
		return err
	}

	if err := util.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	salt := auth.NewSalt()
	hash, err := s.hasher.Hash(newPassword, salt)
	if err != nil {
		return fmt.Errorf("gerar hash: %w", err)
	}
	return s.updatePrincipal(s.repo.UpdatePrincipalPassword(ctx, id, hash, salt))
}

func (s *AuthService) issueSinglePurpose(tokenType auth.TokenType, p repo.Principal, ttl time.Duration) (string, error) {
	claims := s.jwt.NewClaims(tokenType, util.NormalizeEmail(p.Email), ttl)
	claims.UserID = p.ID.String()
	return s.jwt.Encode(claims)
}

// consume revalida tipo, expiração e e-mail (quando informado) e devolve o
// principal do token.
func (s *AuthService) consume(token string, tokenType auth.TokenType, email string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, auth.ErrInvalidToken
	}
	claims, err := s.jwt.Decode(token)
	if err != nil {
		return uuid.Nil, err
	}
	if claims.Type != tokenType {
		return uuid.Nil, auth.ErrInvalidToken
	}
	if email != "" && claims.Subject != util.NormalizeEmail(email) {
		return uuid.Nil, auth.ErrInvalidToken
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, auth.ErrInvalidToken
	}
	return id, nil
}

func (s *AuthService) updatePrincipal(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return auth.ErrPrincipalNotFound
	}
	return storeUnavailable(err)
}
