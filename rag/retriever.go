// Package rag answers queries by grounding completion output in retrieved
// knowledge chunks.
package rag

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
)

// Chunk is one retrieved knowledge excerpt with its originating source.
type Chunk struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Retriever returns the most relevant knowledge chunks for a query. It is
// shared read-only across all sessions.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Chunk, error)
}

type retrieverBox struct {
	r Retriever
}

// Handle is an atomically swappable reference to the active retriever.
// Reload replaces the whole retriever in one swap; in-flight turns keep the
// instance they loaded.
type Handle struct {
	v atomic.Value
}

// NewHandle creates a handle holding the given retriever.
func NewHandle(r Retriever) *Handle {
	h := &Handle{}
	h.v.Store(retrieverBox{r: r})
	return h
}

// Load returns the current retriever.
func (h *Handle) Load() Retriever {
	return h.v.Load().(retrieverBox).r
}

// Swap replaces the current retriever.
func (h *Handle) Swap(r Retriever) {
	h.v.Store(retrieverBox{r: r})
}

// StaticRetriever scores in-memory chunks by case-insensitive term overlap
// with the query. It stands in for an embedding-backed index, which is
// built by the ingestion subsystem and out of scope here.
type StaticRetriever struct {
	chunks []Chunk
}

// NewStaticRetriever creates a retriever over the given chunks.
func NewStaticRetriever(chunks []Chunk) *StaticRetriever {
	return &StaticRetriever{chunks: chunks}
}

// Ensure StaticRetriever implements Retriever.
var _ Retriever = (*StaticRetriever)(nil)

// Retrieve returns up to k chunks ordered by descending overlap score.
// Chunks sharing no terms with the query are not returned.
func (r *StaticRetriever) Retrieve(ctx context.Context, query string, k int) ([]Chunk, error) {
	terms := strings.Fields(strings.ToLower(query))
	type scored struct {
		chunk Chunk
		score int
	}

	var candidates []scored
	for _, chunk := range r.chunks {
		text := strings.ToLower(chunk.Text)
		score := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				score++
			}
		}
		if score > 0 {
			candidates = append(candidates, scored{chunk: chunk, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]Chunk, len(candidates))
	for i, c := range candidates {
		out[i] = c.chunk
	}
	return out, nil
}
