// Package postgres implements a memory.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/FranksOps/serpent/internal/memory"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ memory.Store = (*postgresStore)(nil)

type postgresStore struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS interactions (
	id TEXT PRIMARY KEY,
	timestamp TIMESTAMPTZ NOT NULL,
	agent_id TEXT NOT NULL,
	command TEXT NOT NULL,
	prompt TEXT,
	response TEXT,
	cost DOUBLE PRECISION NOT NULL DEFAULT 0,
	metadata JSONB
);
CREATE INDEX IF NOT EXISTS idx_interactions_agent ON interactions(agent_id);
CREATE INDEX IF NOT EXISTS idx_interactions_timestamp ON interactions(timestamp);
`

// New creates a Postgres-backed memory.Store.
func New(ctx context.Context, dsn string) (memory.Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) Save(ctx context.Context, in *memory.Interaction) error {
	metadataJSON, err := json.Marshal(in.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
	INSERT INTO interactions (id, timestamp, agent_id, command, prompt, response, cost, metadata)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.pool.Exec(ctx, query,
		in.ID, in.Timestamp, in.AgentID, in.Command, in.Prompt, in.Response, in.Cost, metadataJSON)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

func (s *postgresStore) Get(ctx context.Context, id string) (*memory.Interaction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, timestamp, agent_id, command, prompt, response, cost, metadata FROM interactions WHERE id = $1`, id)

	var in memory.Interaction
	var metadataJSON []byte
	err := row.Scan(&in.ID, &in.Timestamp, &in.AgentID, &in.Command, &in.Prompt, &in.Response, &in.Cost, &metadataJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, memory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get interaction: %w", err)
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &in.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &in, nil
}

func (s *postgresStore) List(ctx context.Context, filter memory.Filter) ([]*memory.Interaction, error) {
	query := `SELECT id, timestamp, agent_id, command, prompt, response, cost, metadata FROM interactions WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.AgentID != "" {
		query += fmt.Sprintf(` AND agent_id = $%d`, paramCount)
		args = append(args, filter.AgentID)
		paramCount++
	}
	if filter.Command != "" {
		query += fmt.Sprintf(` AND command = $%d`, paramCount)
		args = append(args, filter.Command)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND timestamp >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY timestamp DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
		paramCount++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	var results []*memory.Interaction
	for rows.Next() {
		var in memory.Interaction
		var metadataJSON []byte
		err := rows.Scan(&in.ID, &in.Timestamp, &in.AgentID, &in.Command, &in.Prompt, &in.Response, &in.Cost, &metadataJSON)
		if err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &in.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		results = append(results, &in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	return results, nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}
