package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imnotsalty/mlschatproto/internal/design"
)

// ErrNotFound indicates that a render record could not be located.
var ErrNotFound = errors.New("render record not found")

// RenderRecord is one finished generation: the design that was submitted and
// the image URL the rendering service produced.
type RenderRecord struct {
	ID            string                `json:"id"`
	SessionID     string                `json:"session_id"`
	TemplateUID   string                `json:"template_uid"`
	Modifications []design.Modification `json:"modifications"`
	ImageURL      string                `json:"image_url"`
	CreatedAt     time.Time             `json:"created_at"`
}

// Store persists render history. Sessions themselves stay in memory; only the
// finished designs are worth keeping across restarts.
type Store interface {
	SaveRender(ctx context.Context, record RenderRecord) (RenderRecord, error)
	GetRender(ctx context.Context, id string) (RenderRecord, error)
	ListRenders(ctx context.Context, sessionID string) ([]RenderRecord, error)
	Close()
}

// NewStore selects a backing store based on whether a database URL is provided.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if databaseURL == "" {
		return NewInMemoryStore(), nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS renders (
        id TEXT PRIMARY KEY,
        session_id TEXT NOT NULL,
        template_uid TEXT NOT NULL,
        modifications JSONB DEFAULT '[]'::jsonb,
        image_url TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`)
	if err != nil {
		return fmt.Errorf("create renders table: %w", err)
	}

	if _, err := pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS renders_session_idx ON renders (session_id, created_at DESC)`); err != nil {
		return fmt.Errorf("index renders table: %w", err)
	}
	return nil
}
