// Package retrieval turns a natural-language query into ranked, citable
// evidence chunks via nearest-neighbor search over the ingested chunk store.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrRetrievalUnavailable means the chunk store is empty or uninitialized.
	ErrRetrievalUnavailable = errors.New("chunk store is empty or uninitialized")

	// ErrNoEvidenceFound means the store was searched but nothing cleared the
	// similarity threshold. A normal outcome, distinct from an unusable store.
	ErrNoEvidenceFound = errors.New("no evidence above similarity threshold")
)

// Embedder produces the query embedding. It must be backed by the same model
// used at ingestion time.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Retriever struct {
	index    *Index
	embedder Embedder
	log      *zap.Logger
}

func NewRetriever(index *Index, embedder Embedder, log *zap.Logger) *Retriever {
	return &Retriever{index: index, embedder: embedder, log: log}
}

// Retrieve embeds the query and returns the top-k chunks scoring at or above
// threshold, descending by score. An empty result is a normal outcome and
// signals the caller to consider a fallback tool. The call has no side
// effects on the index.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, threshold float64) (Result, error) {
	if r.index.Size() == 0 {
		return Result{}, ErrRetrievalUnavailable
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("embed query failed: %w", err)
	}

	chunks, err := r.index.Search(vec, k, threshold)
	if err != nil {
		return Result{}, fmt.Errorf("index search failed: %w", err)
	}

	r.log.Debug("retrieval completed",
		zap.Int("candidates", r.index.Size()),
		zap.Int("hits", len(chunks)),
		zap.Float64("threshold", threshold),
	)
	return Result{Chunks: chunks}, nil
}
