// Package memory persists agent interaction logs: every prompt/response
// exchange a caller chooses to record, queryable by agent, command and
// time range.
package memory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get when no interaction has the given ID.
var ErrNotFound = errors.New("interaction not found")

// Interaction is one recorded agent exchange.
type Interaction struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	AgentID   string         `json:"agent_id"`
	Command   string         `json:"command"`
	Prompt    string         `json:"prompt"`
	Response  string         `json:"response"`
	Cost      float64        `json:"cost"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewInteraction fills the server-assigned fields of an interaction.
func NewInteraction(agentID, command, prompt, response string, cost float64, metadata map[string]any) *Interaction {
	return &Interaction{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		AgentID:   agentID,
		Command:   command,
		Prompt:    prompt,
		Response:  response,
		Cost:      cost,
		Metadata:  metadata,
	}
}

// Filter selects interactions in List queries. Zero values match
// everything.
type Filter struct {
	AgentID string
	Command string
	Since   *time.Time
	Limit   int
	Offset  int
}

// Store defines the interface for persisting and querying interactions.
// List returns interactions newest first.
type Store interface {
	Save(ctx context.Context, in *Interaction) error
	Get(ctx context.Context, id string) (*Interaction, error)
	List(ctx context.Context, filter Filter) ([]*Interaction, error)
	Close() error
}
