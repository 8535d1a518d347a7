// Package models contains domain models for promptvault.
package models

import (
	"strings"
	"time"
)

// SourceFormat identifies which extractor produced a fragment.
type SourceFormat string

const (
	FormatTabular   SourceFormat = "tabular"
	FormatDocument  SourceFormat = "document"
	FormatPlainText SourceFormat = "plaintext"
)

// Semantic attribute keys filled in by enrichment.
const (
	MetaAction   = "action"
	MetaPlace    = "place"
	MetaClothes  = "clothes"
	MetaPose     = "pose"
	MetaLighting = "lighting"
	MetaArtStyle = "art_style"
)

// MetaKeys lists the named attributes every analysis carries, in display order.
var MetaKeys = []string{MetaAction, MetaPlace, MetaClothes, MetaPose, MetaLighting, MetaArtStyle}

// RawFragment is a candidate text unit produced by an extractor before cleaning.
type RawFragment struct {
	Text         string
	SourceFile   string
	SourceFormat SourceFormat
}

// CleanedPrompt is a fragment the normalizer accepted.
type CleanedPrompt struct {
	OriginalText string `json:"original_text"`
	SourceFile   string `json:"source_file"`
}

// Prompt is a persisted prompt owned by exactly one user.
type Prompt struct {
	CreatedAt         time.Time         `json:"created_at"`
	Meta              map[string]string `json:"meta"`
	ID                string            `json:"id"`
	OriginalText      string            `json:"original_text"`
	SourceFile        string            `json:"source_file,omitempty"`
	SampleDescription string            `json:"sample_description,omitempty"`
	UserID            string            `json:"user_id"`
	Tags              []string          `json:"tags"`
}

// NewPrompt builds an unenriched prompt record for a cleaned prompt.
func NewPrompt(id, userID string, cp CleanedPrompt, now time.Time) *Prompt {
	return &Prompt{
		ID:           id,
		OriginalText: cp.OriginalText,
		SourceFile:   cp.SourceFile,
		Tags:         []string{},
		Meta:         map[string]string{},
		CreatedAt:    now,
		UserID:       userID,
	}
}

// Clone returns a deep copy of the prompt.
func (p *Prompt) Clone() *Prompt {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Tags = append([]string{}, p.Tags...)
	cp.Meta = make(map[string]string, len(p.Meta))
	for k, v := range p.Meta {
		cp.Meta[k] = v
	}
	return &cp
}

// IsEnriched reports whether enrichment has written anything onto the prompt.
func (p *Prompt) IsEnriched() bool {
	return len(p.Tags) > 0 || len(p.Meta) > 0 || p.SampleDescription != ""
}

// Matches reports whether the prompt matches a case-insensitive search term
// against its text, its tags or its art style.
func (p *Prompt) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.OriginalText), term) {
		return true
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), term) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(p.Meta[MetaArtStyle]), term)
}

// PromptPatch is a merge-patch applied to an existing prompt.
// Nil fields are left untouched; Meta keys are merged one by one.
type PromptPatch struct {
	SampleDescription *string           `json:"sample_description,omitempty"`
	Meta              map[string]string `json:"meta,omitempty"`
	Tags              []string          `json:"tags,omitempty"`
}

// Apply merges the patch into p.
func (pp PromptPatch) Apply(p *Prompt) {
	if pp.Tags != nil {
		p.Tags = append([]string{}, pp.Tags...)
	}
	if pp.Meta != nil {
		if p.Meta == nil {
			p.Meta = make(map[string]string, len(pp.Meta))
		}
		for k, v := range pp.Meta {
			p.Meta[k] = v
		}
	}
	if pp.SampleDescription != nil {
		p.SampleDescription = *pp.SampleDescription
	}
}

// Analysis is the structured result of enriching one prompt.
type Analysis struct {
	Meta              map[string]string `json:"meta"`
	SampleDescription string            `json:"sampleDescription"`
	Tags              []string          `json:"tags"`
}

// Patch converts the analysis into a merge-patch.
func (a *Analysis) Patch() PromptPatch {
	desc := a.SampleDescription
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	meta := make(map[string]string, len(MetaKeys))
	for _, k := range MetaKeys {
		meta[k] = ""
	}
	for k, v := range a.Meta {
		meta[k] = v
	}
	return PromptPatch{Tags: tags, Meta: meta, SampleDescription: &desc}
}
