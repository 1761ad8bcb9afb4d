package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
)

// Sentinel errors for the semantic index.
var (
	// ErrEmptyQuery is returned when a search has no query text.
	ErrEmptyQuery = errors.New("memory: empty query")

	// ErrNoEmbedder is returned when the index has no embedder attached.
	ErrNoEmbedder = errors.New("memory: no embedder configured")
)

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Metadata tags one indexed snippet.
type Metadata struct {
	Category string
	Title    string
	Year     int
}

// Result is one semantic search hit.
type Result struct {
	Text     string
	Metadata Metadata

	// Score is the cosine similarity to the query, in [-1, 1].
	Score float64
}

// Index is an in-memory vector index over life story snippets. Good for a
// single resident's document; a few hundred entries searched linearly.
type Index struct {
	embedder Embedder
	logger   *slog.Logger

	mu      sync.RWMutex
	entries []indexEntry
}

type indexEntry struct {
	text   string
	meta   Metadata
	vector []float32
}

// NewIndex creates an empty semantic index.
func NewIndex(embedder Embedder, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		embedder: embedder,
		logger:   logger.With("component", "memory.index"),
	}
}

// Add embeds and stores one snippet with its metadata.
func (ix *Index) Add(ctx context.Context, text string, meta Metadata) error {
	if ix.embedder == nil {
		return ErrNoEmbedder
	}
	vector, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed snippet: %w", err)
	}

	ix.mu.Lock()
	ix.entries = append(ix.entries, indexEntry{text: text, meta: meta, vector: vector})
	total := len(ix.entries)
	ix.mu.Unlock()

	ix.logger.Debug("snippet indexed",
		"category", meta.Category,
		"title", meta.Title,
		"total", total,
	)
	return nil
}

// IndexBiography loads every moment of a biography into the index.
func (ix *Index) IndexBiography(ctx context.Context, b *Biography) error {
	b.mu.RLock()
	type item struct {
		text string
		meta Metadata
	}
	var items []item
	for category, moments := range b.categories {
		for _, m := range moments {
			items = append(items, item{
				text: m.Title + ". " + m.Description,
				meta: Metadata{Category: category, Title: m.Title},
			})
		}
	}
	b.mu.RUnlock()

	for _, it := range items {
		if err := ix.Add(ctx, it.text, it.meta); err != nil {
			return err
		}
	}
	return nil
}

// Search returns the topN most similar snippets to the query.
func (ix *Index) Search(ctx context.Context, query string, topN int) ([]Result, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if ix.embedder == nil {
		return nil, ErrNoEmbedder
	}
	if topN <= 0 {
		topN = 3
	}

	queryVec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	ix.mu.RLock()
	results := make([]Result, 0, len(ix.entries))
	for _, e := range ix.entries {
		results = append(results, Result{
			Text:     e.text,
			Metadata: e.meta,
			Score:    cosine(queryVec, e.vector),
		})
	}
	ix.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

// Len returns the number of indexed snippets.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// cosine computes cosine similarity. Mismatched or zero vectors score 0.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
