package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mpcoop/portal/internal/auth"
	"github.com/mpcoop/portal/internal/ledger"
	"github.com/mpcoop/portal/internal/mail"
	"github.com/mpcoop/portal/internal/obs"
	"github.com/mpcoop/portal/internal/repo"
	"github.com/mpcoop/portal/internal/util"
)

// ErrInvalidInput indica dados de entrada rejeitados pela validação.
var ErrInvalidInput = errors.New("dados inválidos")

// PrincipalRepository é o subconjunto de repo.Queries usado pelo serviço.
type PrincipalRepository interface {
	GetPrincipalByID(ctx context.Context, id uuid.UUID) (repo.Principal, error)
	GetPrincipalByEmail(ctx context.Context, email string) (repo.Principal, error)
	SetPrincipalActive(ctx context.Context, id uuid.UUID, active bool) error
	SetPrincipalSubscribed(ctx context.Context, id uuid.UUID, subscribed bool) error
	UpdatePrincipalPassword(ctx context.Context, id uuid.UUID, hash, salt string) error
}

// AuthOptions reúne TTLs e políticas de sessão.
type AuthOptions struct {
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	ActivationTTL  time.Duration
	UnsubscribeTTL time.Duration
	ResetTTL       time.Duration
	// AcceptRefreshAsIdentity permite que ResolveCaller aceite refresh tokens.
	AcceptRefreshAsIdentity bool
}

// AuthService concentra login, rotação de sessão e tokens de uso único.
type AuthService struct {
	repo     PrincipalRepository
	ledger   *ledger.Ledger
	jwt      *auth.JWTManager
	hasher   *auth.Hasher
	notifier mail.Notifier
	links    mail.Links
	metrics  *obs.Metrics
	opts     AuthOptions
}

// NewAuthService cria novo serviço. metrics pode ser nil.
func NewAuthService(r PrincipalRepository, l *ledger.Ledger, jwtMgr *auth.JWTManager, hasher *auth.Hasher, notifier mail.Notifier, links mail.Links, metrics *obs.Metrics, opts AuthOptions) *AuthService {
	if notifier == nil {
		notifier = mail.LogNotifier{}
	}
	return &AuthService{
		repo:     r,
		ledger:   l,
		jwt:      jwtMgr,
		hasher:   hasher,
		notifier: notifier,
		links:    links,
		metrics:  metrics,
		opts:     opts,
	}
}

// LoginResult representa o par de tokens emitido.
type LoginResult struct {
	AccessToken   string
	RefreshToken  string
	RefreshExpiry time.Time
	Subject       string
	Role          auth.Role
}

// Login autentica por e-mail e senha.
func (s *AuthService) Login(ctx context.Context, email, password string) (result *LoginResult, err error) {
	defer func() { s.metrics.AuthEvent("login", err) }()

	principal, err := s.repo.GetPrincipalByEmail(ctx, util.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Msg("login: usuário não encontrado")
			return nil, auth.ErrInvalidCredentials
		}
		return nil, storeUnavailable(err)
	}

	if !s.hasher.Verify(principal.PasswordHash, password, principal.Salt) {
		log.Warn().Str("user_id", principal.ID.String()).Msg("login: senha inválida")
		return nil, auth.ErrInvalidCredentials
	}
	if !principal.Active {
		return nil, auth.ErrAccountDisabled
	}

	return s.issuePair(ctx, principal.ID.String(), principal.Role)
}

// Refresh rotaciona o refresh token e emite novo par para o mesmo dono e papel.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (result *LoginResult, err error) {
	defer func() { s.metrics.AuthEvent("refresh", err) }()

	claims, err := s.decodeRefresh(rawToken)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Rotate(ctx, claims.TokenID(), claims.Subject); err != nil {
		log.Warn().Err(err).Str("user_id", claims.Subject).Msg("refresh: rotação recusada")
		return nil, err
	}

	return s.issuePair(ctx, claims.Subject, claims.Role)
}

// Logout revoga o refresh token em melhor esforço; nunca falha para o chamador.
func (s *AuthService) Logout(ctx context.Context, rawToken string) {
	claims, err := s.decodeRefresh(rawToken)
	if err != nil {
		s.metrics.AuthEvent("logout", err)
		log.Debug().Err(err).Msg("logout: token ignorado")
		return
	}

	err = s.ledger.Revoke(ctx, claims.TokenID(), claims.Subject)
	s.metrics.AuthEvent("logout", err)
	if err != nil {
		log.Warn().Err(err).Str("user_id", claims.Subject).Msg("logout: falha ao revogar refresh token")
	}
}

// ResolveCaller devolve o principal dono do token apresentado.
func (s *AuthService) ResolveCaller(ctx context.Context, rawToken string) (repo.Principal, error) {
	claims, err := s.jwt.Decode(rawToken)
	if err != nil {
		return repo.Principal{}, auth.ErrUnauthorized
	}

	switch claims.Type {
	case auth.TokenAccess:
	case auth.TokenRefresh:
		if !s.opts.AcceptRefreshAsIdentity {
			return repo.Principal{}, auth.ErrUnauthorized
		}
	default:
		return repo.Principal{}, auth.ErrUnauthorized
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return repo.Principal{}, auth.ErrUnauthorized
	}

	principal, err := s.repo.GetPrincipalByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return repo.Principal{}, auth.ErrPrincipalNotFound
		}
		return repo.Principal{}, storeUnavailable(err)
	}
	if !principal.Active {
		return repo.Principal{}, auth.ErrAccountDisabled
	}
	return principal, nil
}

func (s *AuthService) decodeRefresh(rawToken string) (*auth.Claims, error) {
	if rawToken == "" {
		return nil, auth.ErrInvalidToken
	}
	claims, err := s.jwt.Decode(rawToken)
	if err != nil {
		return nil, err
	}
	if claims.Type != auth.TokenRefresh || claims.Subject == "" || claims.TokenID() == "" || !claims.Role.Valid() {
		return nil, auth.ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) issuePair(ctx context.Context, subject string, role auth.Role) (*LoginResult, error) {
	tokenID, expires, err := s.ledger.Issue(ctx, subject, s.opts.RefreshTTL)
	if err != nil {
		return nil, err
	}

	access := s.jwt.NewClaims(auth.TokenAccess, subject, s.opts.AccessTTL)
	access.Role = role
	accessToken, err := s.jwt.Encode(access)
	if err != nil {
		return nil, fmt.Errorf("assinar access token: %w", err)
	}

	refresh := s.jwt.NewClaims(auth.TokenRefresh, subject, s.opts.RefreshTTL)
	refresh.Role = role
	refresh.ID = tokenID
	refreshToken, err := s.jwt.Encode(refresh)
	if err != nil {
		return nil, fmt.Errorf("assinar refresh token: %w", err)
	}

	return &LoginResult{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		RefreshExpiry: expires,
		Subject:       subject,
		Role:          role,
	}, nil
}

func storeUnavailable(err error) error {
	return fmt.Errorf("%w: %w", auth.ErrStoreUnavailable, err)
}
