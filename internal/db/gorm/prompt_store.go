package gorm

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/promptvault/internal/store"
	"github.com/thebtf/promptvault/pkg/models"
)

// upsertColumns are overwritten when a committed id already exists. Creation
// time and enrichment fields are kept.
var upsertColumns = []string{"original_text", "source_file", "user_id"}

// PromptStore implements store.Store on the prompts table.
type PromptStore struct {
	store *Store
	db    *gorm.DB
}

// NewPromptStore creates a new prompt store.
func NewPromptStore(s *Store) *PromptStore {
	return &PromptStore{store: s, db: s.DB}
}

// Close closes the underlying database.
func (s *PromptStore) Close() error {
	return s.store.Close()
}

// Ping reports whether the database is reachable.
func (s *PromptStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// CommitBatch writes one batch in a single transaction.
func (s *PromptStore) CommitBatch(ctx context.Context, prompts []*models.Prompt) error {
	if len(prompts) == 0 {
		return nil
	}
	rows := make([]*Prompt, len(prompts))
	for i, p := range prompts {
		rows[i] = fromModelPrompt(p)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).Create(&rows).Error
	})
}

// Patch merges enrichment fields into an existing row.
func (s *PromptStore) Patch(ctx context.Context, id string, patch models.PromptPatch) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Prompt
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			return notFound(err)
		}

		p := toModelPrompt(&row)
		patch.Apply(p)

		return tx.Model(&Prompt{}).Where("id = ?", id).Updates(map[string]interface{}{
			"tags":               models.JSONStringArray(p.Tags),
			"meta":               models.JSONStringMap(p.Meta),
			"sample_description": p.SampleDescription,
		}).Error
	})
}

// Get returns one prompt.
func (s *PromptStore) Get(ctx context.Context, id string) (*models.Prompt, error) {
	var row Prompt
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return toModelPrompt(&row), nil
}

// QueryByOwner returns every prompt of an owner, newest first.
func (s *PromptStore) QueryByOwner(ctx context.Context, ownerID string) ([]*models.Prompt, error) {
	var rows []Prompt
	err := s.db.WithContext(ctx).
		Scopes(ownerFilter(ownerID), newestFirst()).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toModelPrompts(rows), nil
}

// Delete removes one prompt.
func (s *PromptStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Prompt{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteAllByOwner lists the owner's ids and deletes them in chunks.
func (s *PromptStore) DeleteAllByOwner(ctx context.Context, ownerID string) (int, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&Prompt{}).
		Scopes(ownerFilter(ownerID)).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, chunk := range store.Chunks(ids, store.DefaultChunkSize) {
		result := s.db.WithContext(ctx).Where("id IN ?", chunk).Delete(&Prompt{})
		if result.Error != nil {
			return deleted, result.Error
		}
		deleted += int(result.RowsAffected)
	}
	return deleted, nil
}

// ====================
// GORM Scopes (Reusable Query Filters)
// ====================

// ownerFilter restricts a query to one owner.
func ownerFilter(ownerID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", ownerID)
	}
}

// newestFirst orders by creation time, newest first, with id as tie-breaker.
func newestFirst() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at_epoch DESC").Order("id ASC")
	}
}

var _ store.Store = (*PromptStore)(nil)
