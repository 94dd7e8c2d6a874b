package usecase

import (
	"testing"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

func candidate(chunkID, docID, page string, score *float64) domain.Candidate {
	return domain.Candidate{
		Content: "content of " + chunkID,
		Metadata: map[string]string{
			domain.MetaChunkID: chunkID,
			domain.MetaDocID:   docID,
			domain.MetaPageNum: page,
		},
		Score: score,
	}
}

func chunkIDs(results []domain.RankedResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.ChunkID)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFilterAndRankOrdersByScoreAndTruncates(t *testing.T) {
	candidates := []domain.Candidate{
		candidate("c1", "r1", "1", domain.Score(0.55)),
		candidate("c2", "r1", "2", domain.Score(0.91)),
		candidate("c3", "r2", "1", domain.Score(0.72)),
		candidate("c4", "r2", "2", domain.Score(0.64)),
	}

	got := FilterAndRank(candidates, nil, 0.4, 3)
	if want := []string{"c2", "c3", "c4"}; !equalStrings(chunkIDs(got), want) {
		t.Fatalf("FilterAndRank() = %v, want %v", chunkIDs(got), want)
	}
}

func TestFilterAndRankDropsBelowThreshold(t *testing.T) {
	candidates := []domain.Candidate{
		candidate("low", "r1", "1", domain.Score(0.39)),
		candidate("edge", "r1", "1", domain.Score(0.4)),
		candidate("high", "r1", "1", domain.Score(0.8)),
	}

	got := FilterAndRank(candidates, nil, 0.4, 5)
	if want := []string{"high", "edge"}; !equalStrings(chunkIDs(got), want) {
		t.Fatalf("FilterAndRank() = %v, want %v", chunkIDs(got), want)
	}
	for _, r := range got {
		if *r.Score < 0.4 {
			t.Fatalf("result %s below threshold: %v", r.ChunkID, *r.Score)
		}
	}
}

func TestFilterAndRankKeepsUnscoredCandidatesLast(t *testing.T) {
	candidates := []domain.Candidate{
		candidate("none", "r1", "1", nil),
		candidate("scored", "r1", "1", domain.Score(0.5)),
	}

	got := FilterAndRank(candidates, nil, 0.9, 5)
	if want := []string{"none"}; !equalStrings(chunkIDs(got), want) {
		t.Fatalf("FilterAndRank() = %v, want %v", chunkIDs(got), want)
	}

	got = FilterAndRank(candidates, nil, 0.1, 5)
	if want := []string{"scored", "none"}; !equalStrings(chunkIDs(got), want) {
		t.Fatalf("FilterAndRank() = %v, want %v", chunkIDs(got), want)
	}
}

func TestFilterAndRankAppliesMetadataFilters(t *testing.T) {
	missingDoc := domain.Candidate{
		Content:  "no doc id",
		Metadata: map[string]string{domain.MetaChunkID: "orphan", domain.MetaPageNum: "3"},
		Score:    domain.Score(0.6),
	}
	candidates := []domain.Candidate{
		candidate("a", "report1", "3", domain.Score(0.7)),
		candidate("b", "report1", "4", domain.Score(0.9)),
		candidate("c", "report2", "3", domain.Score(0.95)),
		missingDoc,
	}
	filters := domain.FilterSet{domain.MetaDocID: "report1", domain.MetaPageNum: "3"}

	got := FilterAndRank(candidates, filters, 0.4, 5)
	if want := []string{"a", "orphan"}; !equalStrings(chunkIDs(got), want) {
		t.Fatalf("FilterAndRank() = %v, want %v", chunkIDs(got), want)
	}
}

func TestFilterAndRankStableOnTies(t *testing.T) {
	candidates := []domain.Candidate{
		candidate("first", "r", "1", domain.Score(0.5)),
		candidate("second", "r", "1", domain.Score(0.5)),
		candidate("third", "r", "1", domain.Score(0.5)),
	}

	got := FilterAndRank(candidates, nil, 0, 5)
	if want := []string{"first", "second", "third"}; !equalStrings(chunkIDs(got), want) {
		t.Fatalf("FilterAndRank() = %v, want %v", chunkIDs(got), want)
	}
}

func TestFilterAndRankNonPositiveTopK(t *testing.T) {
	candidates := []domain.Candidate{candidate("a", "r", "1", domain.Score(0.9))}
	for _, k := range []int{0, -1} {
		got := FilterAndRank(candidates, nil, 0, k)
		if got == nil || len(got) != 0 {
			t.Fatalf("topK=%d: expected empty non-nil result, got %#v", k, got)
		}
	}
}

func TestFilterAndRankCopiesProvenance(t *testing.T) {
	c := candidate("report_pg2_ch1", "report", "2", domain.Score(0.8))
	c.Metadata[domain.MetaSource] = "report.pdf"

	got := FilterAndRank([]domain.Candidate{c}, nil, 0.4, 1)
	if len(got) != 1 {
		t.Fatalf("expected one result, got %d", len(got))
	}
	r := got[0]
	if r.DocID != "report" || r.PageNum != "2" || r.Source != "report.pdf" || r.Content != c.Content {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestFilterAndRankEmptyCandidates(t *testing.T) {
	inputs := map[string][]domain.Candidate{
		"nil":   nil,
		"empty": {},
	}
	filterSets := []domain.FilterSet{nil, {domain.MetaDocID: "report"}}
	for name, candidates := range inputs {
		for _, threshold := range []float64{-1, 0, 0.4, 1} {
			for _, topK := range []int{0, 1, 5} {
				for _, filters := range filterSets {
					got := FilterAndRank(candidates, filters, threshold, topK)
					if got == nil || len(got) != 0 {
						t.Fatalf("%s threshold=%v topK=%d filters=%v: expected empty non-nil result, got %#v", name, threshold, topK, filters, got)
					}
				}
			}
		}
	}
}
