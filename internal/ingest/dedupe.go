package ingest

import (
	"strings"

	"github.com/thebtf/promptvault/internal/normalize"
	"github.com/thebtf/promptvault/pkg/models"
)

// Dedupe cleans every fragment, drops the rejected ones and removes exact
// duplicates ignoring case. The first occurrence wins and output keeps the
// order in which texts were first seen.
func Dedupe(n *normalize.Normalizer, frags []models.RawFragment) []models.CleanedPrompt {
	seen := make(map[string]struct{}, len(frags))
	out := make([]models.CleanedPrompt, 0, len(frags))
	for _, f := range frags {
		text, ok := n.Normalize(f.Text)
		if !ok {
			continue
		}
		key := strings.ToLower(text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, models.CleanedPrompt{OriginalText: text, SourceFile: f.SourceFile})
	}
	return out
}
