package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/charon107/hybridrecall/pkg/tokenizer"
	"github.com/charon107/hybridrecall/rag/interfaces"
	"github.com/charon107/hybridrecall/rag/types"
	"github.com/mudler/xlog"
)

// Config is the tuning surface of the hybrid engine.
type Config struct {
	VectorWeight        float64
	KeywordWeight       float64
	RRFK                int
	EnableReranking     bool
	SimilarityThreshold float64
	BM25K1              float64
	BM25B               float64
	UpstreamTimeout     time.Duration
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		VectorWeight:        0.5,
		KeywordWeight:       0.5,
		RRFK:                DefaultRRFK,
		SimilarityThreshold: DefaultSimilarityThreshold,
		BM25K1:              DefaultBM25K1,
		BM25B:               DefaultBM25B,
		UpstreamTimeout:     DefaultUpstreamTimeout,
	}
}

func (c Config) validate() error {
	if c.VectorWeight <= 0 || c.KeywordWeight <= 0 {
		return fmt.Errorf("%w: retrieval weights must be positive", types.ErrConfiguration)
	}
	if c.RRFK <= 0 {
		return fmt.Errorf("%w: rrf k must be positive", types.ErrConfiguration)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity threshold must be in [0,1]", types.ErrConfiguration)
	}
	return nil
}

// HybridSearchEngine combines dense vector search and BM25 keyword search,
// fusing both ranked lists with weighted rank-reciprocal fusion. An optional
// external reranker refines the fused list; it is resolved once at
// construction and a broken one never fails a search.
type HybridSearchEngine struct {
	vector   *VectorAdapter
	keyword  *BM25Index
	reranker types.Reranker
	dense    interfaces.Engine
	cfg      Config
}

// NewHybridSearchEngine assembles the engine. reranker may be nil, in which
// case fused results are returned as-is regardless of cfg.EnableReranking.
func NewHybridSearchEngine(dense interfaces.Engine, reranker types.Reranker, tok *tokenizer.Tokenizer, cfg Config) (*HybridSearchEngine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &HybridSearchEngine{
		vector:   NewVectorAdapter(dense, cfg.SimilarityThreshold, cfg.UpstreamTimeout),
		keyword:  NewBM25Index(tok, cfg.BM25K1, cfg.BM25B),
		reranker: reranker,
		dense:    dense,
		cfg:      cfg,
	}, nil
}

// AddDocuments stores docs in both the dense backend and the keyword index.
// A document that fails either tokenization or dense storage is skipped
// individually; the number of skipped documents is returned.
func (h *HybridSearchEngine) AddDocuments(ctx context.Context, docs []types.Document) (int, error) {
	skipped := 0
	stored := make([]types.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Content == "" {
			skipped++
			continue
		}
		meta := doc.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		if doc.Source != "" {
			meta["source"] = doc.Source
		}
		if err := h.dense.Store(ctx, doc.Content, meta); err != nil {
			xlog.Warn("Failed to store document in dense backend, skipping", "source", doc.Source, "error", err)
			skipped++
			continue
		}
		stored = append(stored, doc)
	}

	skipped += h.keyword.AddDocuments(stored)
	return skipped, nil
}

// Count returns the number of documents in the keyword index.
func (h *HybridSearchEngine) Count() int {
	return h.keyword.Count()
}

// Reset clears both indexes.
func (h *HybridSearchEngine) Reset() error {
	if err := h.dense.Reset(); err != nil {
		return err
	}
	h.keyword.Reset()
	return nil
}

// Search runs the hybrid pipeline: dense and keyword retrieval with the same
// topK (independent of each other), weighted fusion, then the optional
// external rerank. The result never exceeds topK. Queries against an empty
// index return empty results, never an error.
func (h *HybridSearchEngine) Search(ctx context.Context, query string, topK int) ([]types.Result, error) {
	results, _, _, err := h.pipeline(ctx, query, topK)
	return results, err
}

// SearchWithScores runs the same pipeline and additionally reports per-stage
// counts and top scores without altering the returned ranking.
func (h *HybridSearchEngine) SearchWithScores(ctx context.Context, query string, topK int) (*types.SearchReport, error) {
	results, vectorResults, keywordResults, err := h.pipeline(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	stats := types.SearchStats{}
	if top, ok := topScore(vectorResults); ok {
		stats.VectorTopScore = &top
	}
	if top, ok := topScore(keywordResults); ok {
		stats.KeywordTopScore = &top
	}
	if len(results) > 0 {
		stats.FusedTopScore = results[0].FusedScore
	}

	return &types.SearchReport{
		Query:         query,
		VectorCount:   len(vectorResults),
		KeywordCount:  len(keywordResults),
		Results:       results,
		RetrievalStat: stats,
	}, nil
}

func (h *HybridSearchEngine) pipeline(ctx context.Context, query string, topK int) (fused, vector, keyword []types.Result, err error) {
	if topK <= 0 {
		return []types.Result{}, nil, nil, nil
	}

	vector, err = h.vector.Search(ctx, query, topK)
	if err != nil {
		return nil, nil, nil, err
	}
	keyword = h.keyword.Search(query, topK)

	fused, err = FuseWeighted(
		[][]types.Result{vector, keyword},
		[]float64{h.cfg.VectorWeight, h.cfg.KeywordWeight},
		h.cfg.RRFK, topK,
	)
	if err != nil {
		return nil, nil, nil, err
	}

	if h.cfg.EnableReranking && h.reranker != nil && len(fused) > 0 {
		reranked, rerr := h.reranker.Rerank(ctx, query, fused, topK)
		if rerr != nil {
			// Reranking is best-effort: keep the fused order.
			xlog.Warn("External rerank failed, keeping fused order", "error", rerr)
		} else if len(reranked) > 0 {
			fused = reranked
		}
	}

	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, vector, keyword, nil
}

func topScore(results []types.Result) (float64, bool) {
	found := false
	top := 0.0
	for _, r := range results {
		if r.Score == 0 {
			continue
		}
		if !found || r.Score > top {
			top = r.Score
			found = true
		}
	}
	return top, found
}
