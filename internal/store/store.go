// Package store defines persistence for prompt records.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/thebtf/promptvault/pkg/models"
)

// DefaultChunkSize is the largest number of records committed in one batch.
const DefaultChunkSize = 500

// ErrNotFound is returned when a prompt id does not exist.
var ErrNotFound = errors.New("prompt not found")

// Store persists prompt records. Implementations must be safe for concurrent use.
type Store interface {
	// CommitBatch writes one batch atomically. Existing ids are merged:
	// text, source file and owner are updated, while creation time and
	// enrichment fields are kept.
	CommitBatch(ctx context.Context, prompts []*models.Prompt) error
	// Patch merges enrichment fields into an existing prompt.
	Patch(ctx context.Context, id string, patch models.PromptPatch) error
	// Get returns one prompt or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Prompt, error)
	// QueryByOwner returns every prompt of an owner, newest first.
	QueryByOwner(ctx context.Context, ownerID string) ([]*models.Prompt, error)
	// Delete removes one prompt or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
	// DeleteAllByOwner removes every prompt of an owner and returns the count.
	DeleteAllByOwner(ctx context.Context, ownerID string) (int, error)
	Close() error
}

// Pinger is implemented by stores backed by a database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BulkWrite commits prompts in chunks of at most chunkSize, one after another.
// It stops at the first failing chunk and returns the ids committed so far.
func BulkWrite(ctx context.Context, s Store, prompts []*models.Prompt, chunkSize int) ([]string, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	ids := make([]string, 0, len(prompts))
	for start := 0; start < len(prompts); start += chunkSize {
		end := min(start+chunkSize, len(prompts))
		if err := s.CommitBatch(ctx, prompts[start:end]); err != nil {
			return ids, fmt.Errorf("commit chunk %d-%d: %w", start, end, err)
		}
		for _, p := range prompts[start:end] {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

// Chunks splits ids into slices of at most size elements.
func Chunks(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		out = append(out, ids[start:min(start+size, len(ids))])
	}
	return out
}
