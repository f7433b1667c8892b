package types

import "context"

// Reranker defines the interface for reranking search results
type Reranker interface {
	// Rerank takes a query and a fused list, and returns a reordered list of
	// at most topN results.
	Rerank(ctx context.Context, query string, results []Result, topN int) ([]Result, error)
}
