package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// MemoryProvider is the default index provider: a plain in-process cosine
// index, which matches the per-case throwaway lifetime exactly.
type MemoryProvider struct{}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{}
}

func (p *MemoryProvider) NewIndex(ctx context.Context) (Index, error) {
	return &memoryIndex{}, nil
}

type memoryIndex struct {
	entries []Entry
	dim     int
}

func (m *memoryIndex) Insert(ctx context.Context, entries []Entry) error {
	for _, entry := range entries {
		if len(entry.Embedding) == 0 {
			return fmt.Errorf("entry %s has an empty embedding", entry.Unit.ID)
		}
		if m.dim == 0 {
			m.dim = len(entry.Embedding)
		}
		if len(entry.Embedding) != m.dim {
			return fmt.Errorf("entry %s has dimension %d, index has %d", entry.Unit.ID, len(entry.Embedding), m.dim)
		}
		m.entries = append(m.entries, entry)
	}
	return nil
}

func (m *memoryIndex) Search(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	if len(embedding) != m.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(embedding), m.dim)
	}

	matches := make([]Match, 0, len(m.entries))
	for _, entry := range m.entries {
		matches = append(matches, Match{
			Unit:  entry.Unit,
			Score: cosine(embedding, entry.Embedding),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *memoryIndex) Close(ctx context.Context) error {
	m.entries = nil
	return nil
}

func cosine(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
