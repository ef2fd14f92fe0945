// Package jsonfile implements a memory.Store on an append-only NDJSON
// file. It is the zero-dependency default backend.
package jsonfile

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/FranksOps/serpent/internal/memory"
)

var _ memory.Store = (*jsonStore)(nil)

type jsonStore struct {
	mu   sync.Mutex
	file *os.File
}

// New opens (or creates) the NDJSON file at filePath.
func New(filePath string) (memory.Store, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open memory file: %w", err)
	}
	return &jsonStore{file: f}, nil
}

func (s *jsonStore) Save(ctx context.Context, in *memory.Interaction) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal interaction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	return nil
}

func (s *jsonStore) Get(ctx context.Context, id string) (*memory.Interaction, error) {
	var found *memory.Interaction
	err := s.scan(func(in *memory.Interaction) {
		if in.ID == id {
			found = in
		}
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, memory.ErrNotFound
	}
	return found, nil
}

func (s *jsonStore) List(ctx context.Context, filter memory.Filter) ([]*memory.Interaction, error) {
	var all []*memory.Interaction
	err := s.scan(func(in *memory.Interaction) {
		if filter.AgentID != "" && in.AgentID != filter.AgentID {
			return
		}
		if filter.Command != "" && in.Command != filter.Command {
			return
		}
		if filter.Since != nil && in.Timestamp.Before(*filter.Since) {
			return
		}
		all = append(all, in)
	})
	if err != nil {
		return nil, err
	}

	// Newest first. The file is append-ordered, so reversing suffices.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(all) {
			return []*memory.Interaction{}, nil
		}
		all = all[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}
	return all, nil
}

// scan replays the whole file through fn, restoring the write position
// afterwards.
func (s *jsonStore) scan(fn func(*memory.Interaction)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek memory file: %w", err)
	}
	defer func() {
		_, _ = s.file.Seek(0, io.SeekEnd)
	}()

	scanner := bufio.NewScanner(s.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var in memory.Interaction
		if err := json.Unmarshal(line, &in); err != nil {
			return fmt.Errorf("decode interaction: %w", err)
		}
		fn(&in)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read memory file: %w", err)
	}
	return nil
}

func (s *jsonStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
