package gorm

import (
	"time"

	"gorm.io/gorm"

	"github.com/thebtf/promptvault/pkg/models"
)

// Prompt is the prompts table row. Tags and Meta are JSON text columns.
type Prompt struct {
	ID                string                 `gorm:"primaryKey;type:varchar(191)"`
	UserID            string                 `gorm:"type:varchar(191);not null;index:idx_prompts_user_created,priority:1"`
	OriginalText      string                 `gorm:"type:text;not null"`
	SourceFile        string                 `gorm:"type:text"`
	Tags              models.JSONStringArray `gorm:"type:text"` // JSON array
	Meta              models.JSONStringMap   `gorm:"type:text"` // JSON object
	SampleDescription string                 `gorm:"type:text"`
	CreatedAt         string                 `gorm:"not null"`
	CreatedAtEpoch    int64                  `gorm:"not null;index:idx_prompts_user_created,priority:2,sort:desc"`
}

func (Prompt) TableName() string { return "prompts" }

// BeforeCreate hook to ensure timestamps are set.
func (p *Prompt) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if p.CreatedAtEpoch == 0 {
		p.CreatedAtEpoch = now.UnixMilli()
	}
	if p.CreatedAt == "" {
		p.CreatedAt = time.UnixMilli(p.CreatedAtEpoch).UTC().Format(time.RFC3339)
	}
	if p.Tags == nil {
		p.Tags = models.JSONStringArray{}
	}
	if p.Meta == nil {
		p.Meta = models.JSONStringMap{}
	}
	return nil
}

// fromModelPrompt converts a domain prompt to a row.
func fromModelPrompt(p *models.Prompt) *Prompt {
	row := &Prompt{
		ID:                p.ID,
		UserID:            p.UserID,
		OriginalText:      p.OriginalText,
		SourceFile:        p.SourceFile,
		Tags:              models.JSONStringArray(p.Tags),
		Meta:              models.JSONStringMap(p.Meta),
		SampleDescription: p.SampleDescription,
	}
	if !p.CreatedAt.IsZero() {
		row.CreatedAtEpoch = p.CreatedAt.UnixMilli()
		row.CreatedAt = p.CreatedAt.UTC().Format(time.RFC3339)
	}
	return row
}

// toModelPrompt converts a row to a domain prompt.
func toModelPrompt(row *Prompt) *models.Prompt {
	p := &models.Prompt{
		ID:                row.ID,
		UserID:            row.UserID,
		OriginalText:      row.OriginalText,
		SourceFile:        row.SourceFile,
		Tags:              []string(row.Tags),
		Meta:              map[string]string(row.Meta),
		SampleDescription: row.SampleDescription,
		CreatedAt:         time.UnixMilli(row.CreatedAtEpoch).UTC(),
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Meta == nil {
		p.Meta = map[string]string{}
	}
	return p
}

// toModelPrompts converts a slice of rows.
func toModelPrompts(rows []Prompt) []*models.Prompt {
	out := make([]*models.Prompt, len(rows))
	for i := range rows {
		out[i] = toModelPrompt(&rows[i])
	}
	return out
}
