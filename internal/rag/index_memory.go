package rag

import (
	"context"
	"fmt"
	"sync"
)

type memoryEntry struct {
	chunk  Chunk
	vector []float32
}

// MemoryIndex est l'implémentation en mémoire de VectorIndex
type MemoryIndex struct {
	embedder Embedder

	mu      sync.RWMutex
	entries []memoryEntry
	byID    map[string]int
}

func NewMemoryIndex(embedder Embedder) *MemoryIndex {
	return &MemoryIndex{
		embedder: embedder,
		byID:     make(map[string]int),
	}
}

func (m *MemoryIndex) Index(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := m.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range chunks {
		entry := memoryEntry{chunk: c, vector: vectors[i]}
		if pos, ok := m.byID[c.ID]; ok {
			m.entries[pos] = entry
			continue
		}
		m.byID[c.ID] = len(m.entries)
		m.entries = append(m.entries, entry)
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, query string, opts SearchOptions) ([]Chunk, error) {
	m.mu.RLock()
	var scoped []memoryEntry
	for _, e := range m.entries {
		if e.chunk.UserID == opts.UserID && e.chunk.DocumentID == opts.DocumentID {
			scoped = append(scoped, e)
		}
	}
	m.mu.RUnlock()

	if len(scoped) == 0 {
		return nil, nil
	}

	qv, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	vectors := make([][]float32, len(scoped))
	for i, e := range scoped {
		vectors[i] = e.vector
	}
	picked := rankMMR(qv, vectors, opts)

	out := make([]Chunk, len(picked))
	for i, idx := range picked {
		out[i] = scoped[idx].chunk
	}
	return out, nil
}
