package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imnotsalty/mlschatproto/internal/design"
)

// PostgresStore persists render history in postgres via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// SaveRender inserts one finished generation.
func (s *PostgresStore) SaveRender(ctx context.Context, record RenderRecord) (RenderRecord, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	mods, err := json.Marshal(record.Modifications)
	if err != nil {
		return RenderRecord{}, fmt.Errorf("marshal modifications: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO renders (id, session_id, template_uid, modifications, image_url, created_at)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.SessionID, record.TemplateUID, mods, record.ImageURL, record.CreatedAt,
	)
	if err != nil {
		return RenderRecord{}, fmt.Errorf("insert render: %w", err)
	}
	return record, nil
}

// GetRender looks one record up by id.
func (s *PostgresStore) GetRender(ctx context.Context, id string) (RenderRecord, error) {
	var (
		record RenderRecord
		mods   []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, session_id, template_uid, modifications, image_url, created_at
         FROM renders WHERE id = $1`,
		id,
	).Scan(&record.ID, &record.SessionID, &record.TemplateUID, &mods, &record.ImageURL, &record.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RenderRecord{}, ErrNotFound
	}
	if err != nil {
		return RenderRecord{}, fmt.Errorf("query render: %w", err)
	}

	if len(mods) > 0 {
		if err := json.Unmarshal(mods, &record.Modifications); err != nil {
			return RenderRecord{}, fmt.Errorf("unmarshal modifications: %w", err)
		}
	}
	if record.Modifications == nil {
		record.Modifications = []design.Modification{}
	}
	return record, nil
}

// ListRenders returns the session's records, newest first.
func (s *PostgresStore) ListRenders(ctx context.Context, sessionID string) ([]RenderRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, template_uid, modifications, image_url, created_at
         FROM renders WHERE session_id = $1 ORDER BY created_at DESC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query renders: %w", err)
	}
	defer rows.Close()

	var records []RenderRecord
	for rows.Next() {
		var (
			record RenderRecord
			mods   []byte
		)
		if err := rows.Scan(&record.ID, &record.SessionID, &record.TemplateUID, &mods, &record.ImageURL, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan render: %w", err)
		}
		if len(mods) > 0 {
			if err := json.Unmarshal(mods, &record.Modifications); err != nil {
				return nil, fmt.Errorf("unmarshal modifications: %w", err)
			}
		}
		if record.Modifications == nil {
			record.Modifications = []design.Modification{}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
