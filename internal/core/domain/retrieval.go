package domain

import (
	"sort"
	"strings"
)

// Metadata keys recognized on indexed chunks.
const (
	MetaChunkID = "chunk_id"
	MetaDocID   = "doc_id"
	MetaPageNum = "page_num"
	MetaSource  = "source"
	MetaDate    = "date"
)

// FilterKeys lists the keys a FilterSet may carry.
var FilterKeys = []string{MetaDocID, MetaPageNum, MetaDate}

// FilterSet maps metadata keys to the exact string value a candidate must carry.
// Keys missing from a candidate's metadata never exclude it.
type FilterSet map[string]string

func IsFilterKey(key string) bool {
	for _, k := range FilterKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Keys returns filter keys in a stable order.
func (f FilterSet) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f FilterSet) String() string {
	if len(f) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(f))
	for _, k := range f.Keys() {
		parts = append(parts, k+"="+f[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Candidate is a chunk returned by similarity search before filtering.
// Score is nil when the index did not report one.
type Candidate struct {
	Content  string
	Metadata map[string]string
	Score    *float64
}

// RankedResult is a candidate that survived filtering, in relevance order.
type RankedResult struct {
	ChunkID string   `json:"chunk_id"`
	DocID   string   `json:"doc_id"`
	PageNum string   `json:"page_num"`
	Source  string   `json:"source,omitempty"`
	Content string   `json:"content"`
	Score   *float64 `json:"score"`
}

func NewRankedResult(c Candidate) RankedResult {
	return RankedResult{
		ChunkID: c.Metadata[MetaChunkID],
		DocID:   c.Metadata[MetaDocID],
		PageNum: c.Metadata[MetaPageNum],
		Source:  c.Metadata[MetaSource],
		Content: c.Content,
		Score:   c.Score,
	}
}

// Retrieval is the outcome of one retrieval call.
type Retrieval struct {
	Filters FilterSet      `json:"filters,omitempty"`
	Results []RankedResult `json:"results"`
}

func Score(v float64) *float64 {
	return &v
}
