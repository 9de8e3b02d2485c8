// Package store persists conversation history between assistant runs.
package store

import (
	"context"
	"sync"

	"github.com/vango-go/voicenav/pkg/core/types"
)

// HistoryStore persists the running dialogue per session.
type HistoryStore interface {
	// Save replaces the stored dialogue for the session.
	Save(ctx context.Context, sessionID string, turns []types.Message) error

	// Load returns the stored dialogue in order, empty when none exists.
	Load(ctx context.Context, sessionID string) ([]types.Message, error)
}

// MemoryStore keeps dialogues in process memory. It is the default when no
// database is configured; history then lives only as long as the process.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]types.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]types.Message)}
}

func (s *MemoryStore) Save(ctx context.Context, sessionID string, turns []types.Message) error {
	copied := make([]types.Message, len(turns))
	copy(copied, turns)
	s.mu.Lock()
	s.sessions[sessionID] = copied
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, sessionID string) ([]types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.sessions[sessionID]
	out := make([]types.Message, len(stored))
	copy(out, stored)
	return out, nil
}
