package documents

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpcoop/portal/internal/access"
	"github.com/mpcoop/portal/internal/auth"
	"github.com/mpcoop/portal/internal/db"
)

const documentColumns = `id, name, type, storage_key, content_type, size_bytes, classification, allowed_roles, allowed_ids, uploaded_by, created_at`

// Repository provê acesso à tabela documents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria um novo repositório de documentos.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create insere o metadado e executa upload na mesma transação: se o upload
// falhar a linha não é gravada.
func (r *Repository) Create(ctx context.Context, doc Document, upload func(ctx context.Context) error) error {
	const query = `
        INSERT INTO documents (` + documentColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `

	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		roles := make([]string, 0, len(doc.Rule.Roles))
		for _, role := range doc.Rule.Roles {
			roles = append(roles, role.String())
		}
		ids := doc.Rule.PrincipalIDs
		if ids == nil {
			ids = []string{}
		}

		if _, err := tx.Exec(ctx, query,
			doc.ID, doc.Name, string(doc.Type), doc.Key, doc.ContentType, doc.Size,
			string(doc.Rule.Classification), roles, ids, doc.UploadedBy, doc.CreatedAt,
		); err != nil {
			return err
		}
		return upload(ctx)
	})
}

// Get busca documento pelo identificador.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// List devolve documentos, opcionalmente filtrados por tipo, do mais recente ao mais antigo.
func (r *Repository) List(ctx context.Context, docType *Type) ([]Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	var args []any
	if docType != nil {
		query += ` WHERE type = $1`
		args = append(args, string(*docType))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// Delete remove o metadado.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (Document, error) {
	var (
		doc            Document
		docType        string
		classification string
		roles          []string
		ids            []string
	)
	if err := row.Scan(
		&doc.ID,
		&doc.Name,
		&docType,
		&doc.Key,
		&doc.ContentType,
		&doc.Size,
		&classification,
		&roles,
		&ids,
		&doc.UploadedBy,
		&doc.CreatedAt,
	); err != nil {
		return Document{}, err
	}

	doc.Type = Type(docType)
	doc.Rule = ruleFromColumns(classification, roles, ids)
	return doc, nil
}

// ruleFromColumns reconstrói a regra sem revalidar: classificação ou papel
// desconhecido resulta em regra que nega leitura.
func ruleFromColumns(classification string, roles, ids []string) access.Rule {
	rule := access.Rule{Classification: access.Classification(classification), PrincipalIDs: ids}
	for _, value := range roles {
		if role, err := auth.ParseRole(value); err == nil {
			rule.Roles = append(rule.Roles, role)
		}
	}
	return rule
}
