// Package sqlite implements a memory.Store on an embedded SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/FranksOps/serpent/internal/memory"
	_ "modernc.org/sqlite"
)

var _ memory.Store = (*sqliteStore)(nil)

type sqliteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS interactions (
	id TEXT PRIMARY KEY,
	timestamp DATETIME NOT NULL,
	agent_id TEXT NOT NULL,
	command TEXT NOT NULL,
	prompt TEXT,
	response TEXT,
	cost REAL NOT NULL DEFAULT 0,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_interactions_agent ON interactions(agent_id);
CREATE INDEX IF NOT EXISTS idx_interactions_timestamp ON interactions(timestamp);
`

// New creates a SQLite-backed memory.Store at the given DSN.
func New(dsn string) (memory.Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Save(ctx context.Context, in *memory.Interaction) error {
	metadataJSON, err := json.Marshal(in.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
	INSERT INTO interactions (id, timestamp, agent_id, command, prompt, response, cost, metadata)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		in.ID, in.Timestamp, in.AgentID, in.Command, in.Prompt, in.Response, in.Cost, string(metadataJSON))
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*memory.Interaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, timestamp, agent_id, command, prompt, response, cost, metadata FROM interactions WHERE id = ?`, id)

	in, err := scanInteraction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get interaction: %w", err)
	}
	return in, nil
}

func (s *sqliteStore) List(ctx context.Context, filter memory.Filter) ([]*memory.Interaction, error) {
	query := `SELECT id, timestamp, agent_id, command, prompt, response, cost, metadata FROM interactions WHERE 1=1`
	args := []any{}

	if filter.AgentID != "" {
		query += ` AND agent_id = ?`
		args = append(args, filter.AgentID)
	}
	if filter.Command != "" {
		query += ` AND command = ?`
		args = append(args, filter.Command)
	}
	if filter.Since != nil {
		query += ` AND timestamp >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY timestamp DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	var results []*memory.Interaction
	for rows.Next() {
		in, err := scanInteraction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		results = append(results, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	return results, nil
}

func scanInteraction(scan func(...any) error) (*memory.Interaction, error) {
	var in memory.Interaction
	var metadataJSON string
	err := scan(&in.ID, &in.Timestamp, &in.AgentID, &in.Command, &in.Prompt, &in.Response, &in.Cost, &metadataJSON)
	if err != nil {
		return nil, err
	}
	if metadataJSON != "" && metadataJSON != "null" {
		if err := json.Unmarshal([]byte(metadataJSON), &in.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &in, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
