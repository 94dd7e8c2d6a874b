package inmemory

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

// Store is a brute-force cosine similarity index held in process memory.
// It suits tests and single-process demos; nothing survives a restart.
type Store struct {
	mu        sync.RWMutex
	dimension int
	chunks    []domain.Chunk
	vectors   [][]float64
}

func New() *Store {
	return &Store{}
}

// IndexChunks replaces all chunks of the affected documents.
func (s *Store) IndexChunks(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension == 0 {
		s.dimension = len(vectors[0])
	}
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}

	docs := make(map[string]struct{}, 1)
	for _, c := range chunks {
		docs[c.DocID] = struct{}{}
	}
	s.removeDocsLocked(docs)

	for i, c := range chunks {
		s.chunks = append(s.chunks, c)
		s.vectors = append(s.vectors, normalize(vectors[i]))
	}
	return nil
}

// Search returns up to limit chunks ordered by cosine similarity.
func (s *Store) Search(_ context.Context, queryVector []float32, limit int) ([]domain.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dimension != 0 && len(queryVector) != s.dimension {
		return nil, errors.New("query vector dimension mismatch")
	}

	query := normalize(queryVector)
	scores := make([]float64, len(s.vectors))
	idxs := make([]int, len(s.vectors))
	for i := range s.vectors {
		scores[i] = dot(s.vectors[i], query)
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })
	if limit > len(idxs) {
		limit = len(idxs)
	}

	out := make([]domain.Candidate, 0, limit)
	for _, j := range idxs[:limit] {
		c := s.chunks[j]
		out = append(out, domain.Candidate{
			Content: c.Text,
			Metadata: map[string]string{
				domain.MetaChunkID: c.ChunkID,
				domain.MetaDocID:   c.DocID,
				domain.MetaPageNum: strconv.Itoa(c.PageNum),
				domain.MetaSource:  c.Source,
			},
			Score: domain.Score(scores[j]),
		})
	}
	return out, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *Store) removeDocsLocked(docs map[string]struct{}) {
	keptChunks := s.chunks[:0]
	keptVectors := s.vectors[:0]
	for i, c := range s.chunks {
		if _, drop := docs[c.DocID]; drop {
			continue
		}
		keptChunks = append(keptChunks, c)
		keptVectors = append(keptVectors, s.vectors[i])
	}
	s.chunks = keptChunks
	s.vectors = keptVectors
}

func normalize(v []float32) []float64 {
	out := make([]float64, len(v))
	var norm float64
	for i, x := range v {
		out[i] = float64(x)
		norm += out[i] * out[i]
	}
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i := range out {
		out[i] /= norm
	}
	return out
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
