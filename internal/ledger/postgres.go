package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/mpcoop/portal/internal/auth"
	"github.com/mpcoop/portal/internal/util"
)

type pgxExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persiste registros na tabela refresh_tokens.
type PostgresStore struct {
	db    pgxExecer
	clock util.Clock
}

// NewPostgresStore cria store sobre pool pgx (ou transação). O relógio deve ser
// o mesmo do Ledger.
func NewPostgresStore(db pgxExecer, clock util.Clock) *PostgresStore {
	if clock == nil {
		clock = util.SystemClock{}
	}
	return &PostgresStore{db: db, clock: clock}
}

// Put insere o registro e remove, sem bloquear, registros do mesmo dono vencidos
// há mais de ExpiredGrace.
func (s *PostgresStore) Put(ctx context.Context, rec Record) error {
	const insert = `
        INSERT INTO refresh_tokens (id, owner_id, valid, expires_at)
        VALUES ($1, $2, $3, $4)
    `
	if _, err := s.db.Exec(ctx, insert, rec.ID, rec.OwnerID, rec.Valid, rec.ExpiresAt); err != nil {
		return err
	}

	const purge = `DELETE FROM refresh_tokens WHERE owner_id = $1 AND expires_at < $2`
	if _, err := s.db.Exec(ctx, purge, rec.OwnerID, s.clock.Now().Add(-ExpiredGrace)); err != nil {
		log.Warn().Err(err).Str("owner_id", rec.OwnerID).Msg("ledger: falha ao limpar refresh tokens vencidos")
	}
	return nil
}

// Get busca registro pelo id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	const query = `
        SELECT owner_id, valid, expires_at
        FROM refresh_tokens
        WHERE id = $1
    `
	rec := Record{ID: id}
	err := s.db.QueryRow(ctx, query, id).Scan(&rec.OwnerID, &rec.Valid, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, auth.ErrTokenNotFound
		}
		return Record{}, err
	}
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	return rec, nil
}

// Invalidate usa UPDATE condicional; a troca só acontece para quem encontrar valid=true.
func (s *PostgresStore) Invalidate(ctx context.Context, id, ownerID string) (bool, error) {
	const update = `
        UPDATE refresh_tokens
        SET valid = false, revoked_at = now()
        WHERE id = $1 AND owner_id = $2 AND valid
    `
	cmd, err := s.db.Exec(ctx, update, id, ownerID)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() == 1 {
		return true, nil
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if rec.OwnerID != ownerID {
		return false, auth.ErrOwnerMismatch
	}
	return false, nil
}

// PurgeExpired apaga fisicamente registros vencidos de todos os donos.
func (s *PostgresStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
