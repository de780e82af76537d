package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mpcoop/portal/internal/auth"
)

const principalColumns = `id, email, first_name, last_name, phone, role, active, subscribed, password_hash, salt, created_at, updated_at`

// GetPrincipalByID busca principal pelo identificador.
func (q *Queries) GetPrincipalByID(ctx context.Context, id uuid.UUID) (Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE id = $1`
	return scanPrincipal(q.db.QueryRow(ctx, query, id))
}

// GetPrincipalByEmail busca principal pelo e-mail (índice único em lower(email)).
func (q *Queries) GetPrincipalByEmail(ctx context.Context, email string) (Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE lower(email) = lower($1)`
	return scanPrincipal(q.db.QueryRow(ctx, query, email))
}

// SetPrincipalActive ativa ou desativa a conta.
func (q *Queries) SetPrincipalActive(ctx context.Context, id uuid.UUID, active bool) error {
	const query = `UPDATE principals SET active = $2, updated_at = now() WHERE id = $1`
	return q.execOne(ctx, query, id, active)
}

// SetPrincipalSubscribed altera a inscrição na lista de e-mails.
func (q *Queries) SetPrincipalSubscribed(ctx context.Context, id uuid.UUID, subscribed bool) error {
	const query = `UPDATE principals SET subscribed = $2, updated_at = now() WHERE id = $1`
	return q.execOne(ctx, query, id, subscribed)
}

// UpdatePrincipalPassword grava novo hash e salt.
func (q *Queries) UpdatePrincipalPassword(ctx context.Context, id uuid.UUID, hash, salt string) error {
	const query = `UPDATE principals SET password_hash = $2, salt = $3, updated_at = now() WHERE id = $1`
	return q.execOne(ctx, query, id, hash, salt)
}

func (q *Queries) execOne(ctx context.Context, query string, args ...any) error {
	cmd, err := q.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPrincipal(row pgx.Row) (Principal, error) {
	var (
		p    Principal
		role string
	)
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.FirstName,
		&p.LastName,
		&p.Phone,
		&role,
		&p.Active,
		&p.Subscribed,
		&p.PasswordHash,
		&p.Salt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Principal{}, ErrNotFound
		}
		return Principal{}, err
	}

	parsed, err := auth.ParseRole(role)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: principal %s: %w", ErrCorruptRow, p.ID, err)
	}
	p.Role = parsed
	return p, nil
}
