// Package search lists, filters and ranks a user's prompts.
package search

import (
	"context"
	"sort"
	"strings"

	"github.com/thebtf/promptvault/internal/store"
	"github.com/thebtf/promptvault/pkg/models"
)

// Orderings.
const (
	OrderDateDesc  = "date_desc"
	OrderRelevance = "relevance"
)

// Limits applied to SearchParams.Limit.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Manager searches prompts held in a store.
type Manager struct {
	store store.Store
}

// NewManager creates a new search manager.
func NewManager(s store.Store) *Manager {
	return &Manager{store: s}
}

// SearchParams contains parameters for a search.
type SearchParams struct {
	UserID  string
	Query   string
	Tag     string
	OrderBy string
	Offset  int
	Limit   int
}

// Result is one page of matching prompts.
type Result struct {
	Query      string           `json:"query,omitempty"`
	Prompts    []*models.Prompt `json:"prompts"`
	TotalCount int              `json:"total_count"`
}

// TagCount is a tag and how many prompts carry it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Search returns the user's prompts matching the query. An empty query lists
// everything newest first. The match is a case-insensitive substring test on
// the text, the tags and the art style.
func (m *Manager) Search(ctx context.Context, params SearchParams) (*Result, error) {
	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	all, err := m.store.QueryByOwner(ctx, params.UserID)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Prompt, 0, len(all))
	for _, p := range all {
		if p.Matches(params.Query) && hasTag(p, params.Tag) {
			matched = append(matched, p)
		}
	}

	if params.OrderBy == OrderRelevance && strings.TrimSpace(params.Query) != "" {
		matched = rankByRelevance(matched, params.Query)
	}

	res := &Result{Query: params.Query, TotalCount: len(matched), Prompts: []*models.Prompt{}}
	if params.Offset < len(matched) {
		end := min(params.Offset+params.Limit, len(matched))
		res.Prompts = matched[params.Offset:end]
	}
	return res, nil
}

// TopTags returns the n most frequent tags of a user, most frequent first.
// The fallback tag "untagged" is not suggested.
func (m *Manager) TopTags(ctx context.Context, userID string, n int) ([]TagCount, error) {
	all, err := m.store.QueryByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, p := range all {
		for _, t := range p.Tags {
			t = strings.ToLower(strings.TrimSpace(t))
			if t == "" || t == "untagged" {
				continue
			}
			counts[t]++
		}
	}

	out := make([]TagCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, TagCount{Tag: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func hasTag(p *models.Prompt, tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return true
	}
	for _, t := range p.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// rankByRelevance fuses three ranked lists: text matches by match position,
// exact tag matches, and art style matches.
func rankByRelevance(prompts []*models.Prompt, query string) []*models.Prompt {
	term := strings.ToLower(strings.TrimSpace(query))
	byID := make(map[string]*models.Prompt, len(prompts))

	type hit struct {
		id  string
		pos int
	}
	var textHits []hit
	var tagList, styleList []ScoredID
	for _, p := range prompts {
		byID[p.ID] = p
		if pos := strings.Index(strings.ToLower(p.OriginalText), term); pos >= 0 {
			textHits = append(textHits, hit{id: p.ID, pos: pos})
		}
		for _, t := range p.Tags {
			if strings.EqualFold(t, term) {
				tagList = append(tagList, ScoredID{ID: p.ID, Field: "tag"})
				break
			}
		}
		if strings.Contains(strings.ToLower(p.Meta[models.MetaArtStyle]), term) {
			styleList = append(styleList, ScoredID{ID: p.ID, Field: "style"})
		}
	}
	sort.SliceStable(textHits, func(i, j int) bool { return textHits[i].pos < textHits[j].pos })
	textList := make([]ScoredID, len(textHits))
	for i, h := range textHits {
		textList[i] = ScoredID{ID: h.id, Field: "text"}
	}

	fused := RRF(textList, tagList, styleList)
	out := make([]*models.Prompt, 0, len(prompts))
	seen := make(map[string]bool, len(fused))
	for _, s := range fused {
		out = append(out, byID[s.ID])
		seen[s.ID] = true
	}
	// Prompts matching only through a partial tag keep their date order.
	for _, p := range prompts {
		if !seen[p.ID] {
			out = append(out, p)
		}
	}
	return out
}
