// Package ledger mantém o estado server-side dos refresh tokens emitidos.
//
// Cada refresh token carrega um identificador aleatório (jti) que aponta para um
// Record. A validade lógica é sempre conferida pelo flag e pela expiração no
// momento da verificação; a remoção física de registros vencidos fica a cargo
// do backend e não afeta a correção.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mpcoop/portal/internal/auth"
	"github.com/mpcoop/portal/internal/util"
)

// ExpiredGrace é quanto um registro vencido continua guardado antes da remoção
// física, para que a verificação ainda responda "expirado" e não "inexistente".
const ExpiredGrace = time.Hour

// Record é a linha persistida de um refresh token.
type Record struct {
	ID        string
	OwnerID   string
	Valid     bool
	ExpiresAt time.Time
}

// Store é o contrato mínimo exigido do armazenamento chave-valor.
//
// Get retorna auth.ErrTokenNotFound quando o registro não existe.
// Invalidate precisa ser uma única operação atômica: marca valid=false somente
// se o registro existir, pertencer a owner e estiver válido. Retorna true quando
// este chamador efetuou a troca, false quando o registro já estava inválido,
// e auth.ErrTokenNotFound / auth.ErrOwnerMismatch nos demais casos.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	Invalidate(ctx context.Context, id, ownerID string) (bool, error)
}

// Ledger aplica as regras de emissão, verificação, rotação e revogação.
type Ledger struct {
	store   Store
	clock   util.Clock
	timeout time.Duration
}

// New cria o ledger. timeout <= 0 desativa o limite por chamada.
func New(store Store, clock util.Clock, timeout time.Duration) *Ledger {
	if clock == nil {
		clock = util.SystemClock{}
	}
	return &Ledger{store: store, clock: clock, timeout: timeout}
}

// Issue registra um novo refresh token válido por ttl e devolve seu identificador.
func (l *Ledger) Issue(ctx context.Context, ownerID string, ttl time.Duration) (string, time.Time, error) {
	if ownerID == "" {
		return "", time.Time{}, errors.New("ledger: owner obrigatório")
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("ledger: ttl deve ser positivo")
	}

	id, err := auth.NewTokenID()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("ledger: gerar id: %w", err)
	}

	expires := l.clock.Now().Add(ttl)
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	rec := Record{ID: id, OwnerID: ownerID, Valid: true, ExpiresAt: expires}
	if err := l.store.Put(ctx, rec); err != nil {
		return "", time.Time{}, unavailable(err)
	}
	return id, expires, nil
}

// Verify confere o registro na ordem: inexistente, dono diferente, revogado, expirado.
func (l *Ledger) Verify(ctx context.Context, id, ownerID string) error {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	rec, err := l.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, auth.ErrTokenNotFound) {
			return auth.ErrTokenNotFound
		}
		return unavailable(err)
	}
	return l.check(rec, ownerID)
}

// Revoke marca o token como inválido. Revogar token já revogado não é erro.
func (l *Ledger) Revoke(ctx context.Context, id, ownerID string) error {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	if _, err := l.store.Invalidate(ctx, id, ownerID); err != nil {
		return classify(err)
	}
	return nil
}

// Rotate verifica o token e o consome atomicamente. Sob chamadas concorrentes
// apenas uma rotação tem sucesso; as demais recebem auth.ErrTokenRevoked.
func (l *Ledger) Rotate(ctx context.Context, id, ownerID string) error {
	if err := l.Verify(ctx, id, ownerID); err != nil {
		return err
	}

	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	flipped, err := l.store.Invalidate(ctx, id, ownerID)
	if err != nil {
		return classify(err)
	}
	if !flipped {
		return auth.ErrTokenRevoked
	}
	return nil
}

func (l *Ledger) check(rec Record, ownerID string) error {
	switch {
	case rec.OwnerID != ownerID:
		return auth.ErrOwnerMismatch
	case !rec.Valid:
		return auth.ErrTokenRevoked
	case !l.clock.Now().Before(rec.ExpiresAt):
		return auth.ErrTokenExpired
	}
	return nil
}

func (l *Ledger) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.timeout)
}

func classify(err error) error {
	switch {
	case errors.Is(err, auth.ErrTokenNotFound):
		return auth.ErrTokenNotFound
	case errors.Is(err, auth.ErrOwnerMismatch):
		return auth.ErrOwnerMismatch
	}
	return unavailable(err)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", auth.ErrStoreUnavailable, err)
}
