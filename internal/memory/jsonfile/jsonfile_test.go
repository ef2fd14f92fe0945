package jsonfile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/serpent/internal/memory"
)

func newTestStore(t *testing.T) memory.Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "memory.ndjson"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func saveInteraction(t *testing.T, store memory.Store, agentID, command string, ts time.Time) *memory.Interaction {
	t.Helper()
	in := memory.NewInteraction(agentID, command, "prompt", "response", 0.01, map[string]any{"k": "v"})
	in.Timestamp = ts
	if err := store.Save(context.Background(), in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return in
}

func TestJSONStore_SaveGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := saveInteraction(t, store, "agent-1", "search", time.Now().UTC())

	got, err := store.Get(ctx, in.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AgentID != "agent-1" || got.Command != "search" || got.Prompt != "prompt" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Metadata["k"] != "v" {
		t.Errorf("metadata lost: %+v", got.Metadata)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestJSONStore_ListFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	saveInteraction(t, store, "agent-1", "search", base)
	saveInteraction(t, store, "agent-2", "crawl", base.Add(time.Minute))
	saveInteraction(t, store, "agent-1", "crawl", base.Add(2*time.Minute))

	all, err := store.List(ctx, memory.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 interactions, got %d", len(all))
	}
	if !all[0].Timestamp.After(all[2].Timestamp) {
		t.Error("list must be newest first")
	}

	byAgent, err := store.List(ctx, memory.Filter{AgentID: "agent-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byAgent) != 2 {
		t.Errorf("agent filter: got %d, want 2", len(byAgent))
	}

	byCommand, err := store.List(ctx, memory.Filter{Command: "crawl"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byCommand) != 2 {
		t.Errorf("command filter: got %d, want 2", len(byCommand))
	}

	since := base.Add(90 * time.Second)
	recent, err := store.List(ctx, memory.Filter{Since: &since})
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 {
		t.Errorf("since filter: got %d, want 1", len(recent))
	}

	limited, err := store.List(ctx, memory.Filter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("limit/offset: got %d, want 2", len(limited))
	}

	empty, err := store.List(ctx, memory.Filter{Offset: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("offset beyond end: got %d, want 0", len(empty))
	}
}
