package engine

import (
	"fmt"
	"sort"

	"github.com/charon107/hybridrecall/rag/types"
)

// DefaultRRFK is the rank-smoothing constant for reciprocal-rank fusion.
const DefaultRRFK = 20

// FuseWeighted merges any number of ranked lists into one with weighted
// rank-reciprocal fusion: a document at 1-based rank r in list i adds
// weights[i] / (r + k) to its cumulative score, keyed by exact content.
// Near-duplicate (non-identical) content is never merged.
//
// Payload fields other than the fused score come from the first occurrence
// across the lists, in list order then rank order. The fused order is by
// cumulative score descending with first-appearance order breaking ties, and
// is truncated to topK. List order never changes a fused score, only which
// occurrence supplies the payload.
func FuseWeighted(lists [][]types.Result, weights []float64, k, topK int) ([]types.Result, error) {
	if len(lists) != len(weights) {
		return nil, fmt.Errorf("%w: %d ranked lists but %d weights",
			types.ErrConfiguration, len(lists), len(weights))
	}
	for i, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("%w: weight %d must be positive, got %v",
				types.ErrConfiguration, i, w)
		}
	}
	if k < 0 {
		k = DefaultRRFK
	}

	type fused struct {
		result types.Result
		score  float64
	}
	scores := map[string]*fused{}
	order := []string{} // first-appearance order for stable ties

	for li, list := range lists {
		for rank, result := range list {
			contribution := weights[li] * (1.0 / float64(rank+1+k))
			if entry, ok := scores[result.Content]; ok {
				entry.score += contribution
				continue
			}
			scores[result.Content] = &fused{result: result, score: contribution}
			order = append(order, result.Content)
		}
	}

	merged := make([]types.Result, 0, len(order))
	for _, content := range order {
		entry := scores[content]
		r := entry.result
		r.FusedScore = entry.score
		merged = append(merged, r)
	}

	sort.SliceStable(merged, func(a, b int) bool {
		return merged[a].FusedScore > merged[b].FusedScore
	})

	if topK < 0 {
		topK = 0
	}
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}
