package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charon107/hybridrecall/rag/interfaces"
	"github.com/charon107/hybridrecall/rag/types"
	"github.com/mudler/xlog"
)

// DefaultSimilarityThreshold is the minimum similarity for a dense hit to be
// considered relevant.
const DefaultSimilarityThreshold = 0.5

// DefaultUpstreamTimeout bounds each call to a remote capability.
const DefaultUpstreamTimeout = 10 * time.Second

// VectorAdapter wraps a dense-search backend: it normalizes records arriving
// in differing shapes into the canonical Result form and deduplicates them by
// exact content, keeping the highest-ranked occurrence. Downstream code never
// branches on backend shape.
type VectorAdapter struct {
	engine    interfaces.Engine
	threshold float64
	timeout   time.Duration
}

// NewVectorAdapter wraps engine. A threshold outside (0, 1] falls back to the
// default; a non-positive timeout falls back to the default upstream timeout.
func NewVectorAdapter(engine interfaces.Engine, threshold float64, timeout time.Duration) *VectorAdapter {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	if timeout <= 0 {
		timeout = DefaultUpstreamTimeout
	}
	return &VectorAdapter{
		engine:    engine,
		threshold: threshold,
		timeout:   timeout,
	}
}

// Search queries the dense backend with a bounded timeout and a single retry.
// A backend that stays unreachable yields ErrUpstreamUnavailable: dense
// search is mandatory, so the caller fails the overall search.
func (a *VectorAdapter) Search(ctx context.Context, query string, topK int) ([]types.Result, error) {
	if topK <= 0 {
		return []types.Result{}, nil
	}

	raw, err := a.query(ctx, query, topK)
	if err != nil {
		xlog.Warn("Dense search failed, retrying once", "error", err)
		raw, err = a.query(ctx, query, topK)
		if err != nil {
			return nil, fmt.Errorf("dense search: %w: %v", types.ErrUpstreamUnavailable, err)
		}
	}

	results := make([]types.Result, 0, len(raw))
	seen := map[string]struct{}{}
	for _, r := range raw {
		normalized, ok := normalizeHit(r)
		if !ok {
			continue
		}
		if _, dup := seen[normalized.Content]; dup {
			continue
		}
		seen[normalized.Content] = struct{}{}
		results = append(results, normalized)
		if len(results) == topK {
			break
		}
	}
	return results, nil
}

func (a *VectorAdapter) query(ctx context.Context, query string, topK int) ([]types.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.engine.Search(callCtx, query, topK, a.threshold)
}

// normalizeHit maps a backend record onto the canonical shape. Backends
// disagree on where content and source live, so missing fields are recovered
// from well-known metadata keys. Records with blank content are dropped.
func normalizeHit(r types.Result) (types.Result, bool) {
	content := r.Content
	if content == "" && r.Metadata != nil {
		content = r.Metadata["text"]
	}
	if strings.TrimSpace(content) == "" {
		return types.Result{}, false
	}

	source := r.Source
	if source == "" && r.Metadata != nil {
		if s := r.Metadata["source_file"]; s != "" {
			source = s
		} else if s := r.Metadata["source"]; s != "" {
			source = s
		}
	}
	if source == "" {
		source = "unknown"
	}

	return types.Result{
		Content:  content,
		Source:   source,
		Metadata: r.Metadata,
		Score:    r.Score,
	}, true
}
