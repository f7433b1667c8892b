package interfaces

import (
	"context"

	"github.com/charon107/hybridrecall/rag/types"
)

// Engine defines the interface for dense (vector similarity) search backends.
type Engine interface {
	Store(ctx context.Context, content string, meta map[string]string) error
	Reset() error
	Count() int
	// Search returns hits with similarity at or above threshold, best first.
	Search(ctx context.Context, query string, topK int, threshold float64) ([]types.Result, error)
}

// StopwordSource supplies stop words for a language code. Implementations may
// be backed by external data; callers fall back to a built-in table when the
// source is missing or fails.
type StopwordSource interface {
	Stopwords(lang string) (map[string]struct{}, error)
}
