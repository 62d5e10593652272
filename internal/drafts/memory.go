package drafts

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/fitspace/morphsync/internal/errors"
)

// MemoryStore keeps drafts for the lifetime of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	drafts map[string]Draft
	// failWrites simulates storage refusing writes, e.g. when a quota is exceeded.
	failWrites bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[string]Draft)}
}

// FailWrites makes every following Put fail with ErrUnavailable.
func (s *MemoryStore) FailWrites(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = fail
}

func (s *MemoryStore) Put(_ context.Context, draft Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errors.Wrap(ErrUnavailable, "put draft", slog.String("key", draft.Key))
	}
	draft.Command.Data = draft.Command.Data.Clone()
	s.drafts[draft.Key] = draft
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	draft, ok := s.drafts[key]
	if !ok {
		return Draft{}, errors.Wrap(ErrNotFound, "get draft", slog.String("key", key))
	}
	draft.Command.Data = draft.Command.Data.Clone()
	return draft, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, key)
	return nil
}

// List returns the drafts ordered by key.
func (s *MemoryStore) List(_ context.Context) ([]Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Draft, 0, len(s.drafts))
	for _, d := range s.drafts {
		d.Command.Data = d.Command.Data.Clone()
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out, nil
}
