package search

import "sort"

// ScoredID pairs a prompt ID with a fused score and the field it matched on.
type ScoredID struct {
	Field string // "text", "tag", "style"
	ID    string
	Score float64
}

// RRF fuses multiple ranked lists using Reciprocal Rank Fusion (k=60).
// Each input list must be sorted best first.
//
// Weighting rules:
//   - First two lists in the variadic args receive 2x weight multiplier
//   - Top-rank bonuses: rank=0 -> +0.05, rank<=2 -> +0.02
//
// Returns a deduplicated list sorted by fused score descending. Ties keep the
// order in which IDs were first seen.
func RRF(lists ...[]ScoredID) []ScoredID {
	scores := make(map[string]float64)
	field := make(map[string]string)
	var order []string

	for listIdx, list := range lists {
		weight := 1.0
		if listIdx < 2 {
			weight = 2.0
		}
		for rank, item := range list {
			rankBonus := 0.0
			if rank == 0 {
				rankBonus = 0.05
			} else if rank <= 2 {
				rankBonus = 0.02
			}
			contrib := weight/(60.0+float64(rank)+1) + rankBonus
			if _, exists := scores[item.ID]; !exists {
				order = append(order, item.ID)
				field[item.ID] = item.Field
			}
			scores[item.ID] += contrib
		}
	}

	result := make([]ScoredID, 0, len(scores))
	for _, id := range order {
		result = append(result, ScoredID{ID: id, Field: field[id], Score: scores[id]})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})
	return result
}
