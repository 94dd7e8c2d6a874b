package usecase

import (
	"sort"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

// FilterAndRank drops candidates scored below threshold or contradicting a
// filter, orders survivors by score descending and keeps at most topK.
// Unscored candidates are never dropped by the threshold and sort last.
func FilterAndRank(
	candidates []domain.Candidate,
	filters domain.FilterSet,
	scoreThreshold float64,
	topK int,
) []domain.RankedResult {
	if topK <= 0 || len(candidates) == 0 {
		return []domain.RankedResult{}
	}

	out := make([]domain.RankedResult, 0, len(candidates))
	for _, c := range candidates {
		if c.Score != nil && *c.Score < scoreThreshold {
			continue
		}
		if !matchesFilters(c.Metadata, filters) {
			continue
		}
		out = append(out, domain.NewRankedResult(c))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return scoreGreater(out[i].Score, out[j].Score)
	})

	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

func matchesFilters(metadata map[string]string, filters domain.FilterSet) bool {
	for key, want := range filters {
		got, ok := metadata[key]
		if ok && got != want {
			return false
		}
	}
	return true
}

func scoreGreater(a, b *float64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a > *b
	}
}
