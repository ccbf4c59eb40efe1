package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/chatid-bot/internal/quota"
)

// DefaultDocumentName names the row holding the quota document.
const DefaultDocumentName = "limits"

// PostgresStore is a PostgreSQL implementation of quota.Store. The document
// is kept as a single jsonb row.
type PostgresStore struct {
	pool *pgxpool.Pool
	name string
}

// NewPostgresStore creates a new PostgreSQL-backed quota store.
func NewPostgresStore(pool *pgxpool.Pool, name string) *PostgresStore {
	if name == "" {
		name = DefaultDocumentName
	}

	return &PostgresStore{pool: pool, name: name}
}

// Migrate creates the documents table when it does not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS quota_documents (
			name       TEXT PRIMARY KEY,
			body       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`

	_, err := p.pool.Exec(ctx, query)

	return err
}

func (p *PostgresStore) Load(ctx context.Context) (quota.Document, error) {
	query := `
		SELECT body
		FROM quota_documents
		WHERE name = $1
	`

	var raw []byte

	err := p.pool.QueryRow(ctx, query, p.name).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return quota.Document{}, nil
		}

		return nil, err
	}

	doc := quota.Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode quota document: %w", err)
	}

	return doc, nil
}

func (p *PostgresStore) Save(ctx context.Context, doc quota.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode quota document: %w", err)
	}

	query := `
		INSERT INTO quota_documents (name, body, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
	`

	_, err = p.pool.Exec(ctx, query, p.name, payload)

	return err
}

// Ping checks PostgreSQL connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
