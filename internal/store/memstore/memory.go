// Package memstore is an in-memory store.Store used by tests and by the CLI
// when no database is configured.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/thebtf/promptvault/internal/store"
	"github.com/thebtf/promptvault/pkg/models"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu      sync.RWMutex
	prompts map[string]*models.Prompt
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{prompts: make(map[string]*models.Prompt)}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// CommitBatch implements store.Store. The batch is applied under one lock.
func (s *Store) CommitBatch(ctx context.Context, prompts []*models.Prompt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range prompts {
		if existing, ok := s.prompts[p.ID]; ok {
			existing.OriginalText = p.OriginalText
			existing.SourceFile = p.SourceFile
			existing.UserID = p.UserID
			continue
		}
		s.prompts[p.ID] = p.Clone()
	}
	return nil
}

// Patch implements store.Store.
func (s *Store) Patch(ctx context.Context, id string, patch models.PromptPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prompts[id]
	if !ok {
		return store.ErrNotFound
	}
	patch.Apply(p)
	return nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, id string) (*models.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prompts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p.Clone(), nil
}

// QueryByOwner implements store.Store.
func (s *Store) QueryByOwner(ctx context.Context, ownerID string) ([]*models.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Prompt
	for _, p := range s.prompts {
		if p.UserID == ownerID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prompts[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.prompts, id)
	return nil
}

// DeleteAllByOwner implements store.Store.
func (s *Store) DeleteAllByOwner(ctx context.Context, ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, p := range s.prompts {
		if p.UserID == ownerID {
			delete(s.prompts, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored prompts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prompts)
}

var _ store.Store = (*Store)(nil)
