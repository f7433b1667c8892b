package engine_test

import (
	"context"
	"errors"

	"github.com/charon107/hybridrecall/pkg/tokenizer"
	. "github.com/charon107/hybridrecall/rag/engine"
	"github.com/charon107/hybridrecall/rag/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeReranker reverses the fused order, or fails when told to.
type fakeReranker struct {
	err   error
	calls int
}

func (r *fakeReranker) Rerank(ctx context.Context, query string, results []types.Result, topN int) ([]types.Result, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	reversed := make([]types.Result, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		res := results[i]
		res.RerankScore = float64(len(results) - i)
		res.FinalRank = len(results) - i
		reversed = append(reversed, res)
	}
	if len(reversed) > topN {
		reversed = reversed[:topN]
	}
	return reversed, nil
}

func newHybrid(dense *fakeDenseEngine, reranker types.Reranker, cfg Config) *HybridSearchEngine {
	tok := tokenizer.New(tokenizer.FieldsSegmenter{}, nil, "zh")
	hybrid, err := NewHybridSearchEngine(dense, reranker, tok, cfg)
	Expect(err).ToNot(HaveOccurred())
	return hybrid
}

var _ = Describe("HybridSearchEngine", func() {
	var (
		dense *fakeDenseEngine
		cfg   Config
	)

	BeforeEach(func() {
		dense = &fakeDenseEngine{}
		cfg = DefaultConfig()
	})

	Describe("configuration", func() {
		It("should reject non-positive weights", func() {
			cfg.VectorWeight = 0
			tok := tokenizer.New(tokenizer.FieldsSegmenter{}, nil, "zh")
			_, err := NewHybridSearchEngine(dense, nil, tok, cfg)
			Expect(err).To(MatchError(types.ErrConfiguration))
		})

		It("should reject an out-of-range similarity threshold", func() {
			cfg.SimilarityThreshold = 1.5
			tok := tokenizer.New(tokenizer.FieldsSegmenter{}, nil, "zh")
			_, err := NewHybridSearchEngine(dense, nil, tok, cfg)
			Expect(err).To(MatchError(types.ErrConfiguration))
		})
	})

	Describe("Search", func() {
		It("should return empty results against an empty index", func() {
			hybrid := newHybrid(dense, nil, cfg)

			results, err := hybrid.Search(context.Background(), "价值", 5)
			Expect(err).ToNot(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("should fuse vector and keyword results", func() {
			hybrid := newHybrid(dense, nil, cfg)

			_, err := hybrid.AddDocuments(context.Background(), []types.Document{
				{Content: "价值 劳动", Source: "keyword-only"},
				{Content: "市场 价格", Source: "other"},
			})
			Expect(err).ToNot(HaveOccurred())
			dense.results = []types.Result{{Content: "vector only chunk", Source: "vec", Score: 0.9}}

			results, err := hybrid.Search(context.Background(), "价值", 5)
			Expect(err).ToNot(HaveOccurred())
			Expect(results).To(HaveLen(2))

			// Rank 1 in both lists with equal weights: the vector hit comes
			// first by first-appearance tie-break.
			Expect(results[0].Content).To(Equal("vector only chunk"))
			Expect(results[1].Content).To(Equal("价值 劳动"))
			Expect(results[0].FusedScore).To(BeNumerically("~", 0.5/21.0, 1e-9))
		})

		It("should accumulate fused scores for content present in both lists", func() {
			hybrid := newHybrid(dense, nil, cfg)

			_, err := hybrid.AddDocuments(context.Background(), []types.Document{
				{Content: "价值 劳动", Source: "shared"},
			})
			Expect(err).ToNot(HaveOccurred())
			dense.results = []types.Result{{Content: "价值 劳动", Source: "shared", Score: 0.95}}

			results, err := hybrid.Search(context.Background(), "价值", 5)
			Expect(err).ToNot(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].FusedScore).To(BeNumerically("~", 0.5/21.0+0.5/21.0, 1e-9))
		})

		It("should fail when the dense backend stays unavailable", func() {
			dense.failures = 2
			hybrid := newHybrid(dense, nil, cfg)

			_, err := hybrid.Search(context.Background(), "价值", 5)
			Expect(err).To(MatchError(types.ErrUpstreamUnavailable))
		})

		It("should never exceed top_k", func() {
			hybrid := newHybrid(dense, nil, cfg)

			_, err := hybrid.AddDocuments(context.Background(), []types.Document{
				{Content: "价值 劳动"},
				{Content: "价值 市场"},
				{Content: "价值 理论"},
			})
			Expect(err).ToNot(HaveOccurred())
			dense.results = []types.Result{{Content: "第一 价值", Score: 0.9}, {Content: "第二 价值", Score: 0.8}}

			for topK := 0; topK <= 6; topK++ {
				results, err := hybrid.Search(context.Background(), "价值", topK)
				Expect(err).ToNot(HaveOccurred())
				Expect(len(results)).To(BeNumerically("<=", topK))
			}
		})
	})

	Describe("external reranking", func() {
		BeforeEach(func() {
			cfg.EnableReranking = true
		})

		It("should apply the reranker's ordering and attach scores", func() {
			reranker := &fakeReranker{}
			hybrid := newHybrid(dense, reranker, cfg)

			_, err := hybrid.AddDocuments(context.Background(), []types.Document{
				{Content: "价值 劳动", Source: "a"},
				{Content: "价值 市场", Source: "b"},
			})
			Expect(err).ToNot(HaveOccurred())

			results, err := hybrid.Search(context.Background(), "价值", 5)
			Expect(err).ToNot(HaveOccurred())
			Expect(reranker.calls).To(Equal(1))
			Expect(results).To(HaveLen(2))
			Expect(results[0].FinalRank).To(Equal(1))
			Expect(results[0].RerankScore).To(BeNumerically(">", 0))
		})

		It("should keep the fused order when the reranker fails", func() {
			reranker := &fakeReranker{err: errors.New("rerank service down")}
			hybrid := newHybrid(dense, reranker, cfg)

			_, err := hybrid.AddDocuments(context.Background(), []types.Document{
				{Content: "价值 劳动", Source: "a"},
				{Content: "价值 市场", Source: "b"},
			})
			Expect(err).ToNot(HaveOccurred())

			results, err := hybrid.Search(context.Background(), "价值", 5)
			Expect(err).ToNot(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].Source).To(Equal("a"))
			Expect(results[1].Source).To(Equal("b"))
		})

		It("should search normally when no reranker was constructed", func() {
			hybrid := newHybrid(dense, nil, cfg)

			_, err := hybrid.AddDocuments(context.Background(), []types.Document{
				{Content: "价值 劳动"},
			})
			Expect(err).ToNot(HaveOccurred())

			results, err := hybrid.Search(context.Background(), "价值", 5)
			Expect(err).ToNot(HaveOccurred())
			Expect(results).To(HaveLen(1))
		})
	})

	Describe("SearchWithScores", func() {
		It("should report per-stage counts and top scores without changing the ranking", func() {
			hybrid := newHybrid(dense, nil, cfg)

			_, err := hybrid.AddDocuments(context.Background(), []types.Document{
				{Content: "价值 劳动", Source: "a"},
				{Content: "价值 市场", Source: "b"},
			})
			Expect(err).ToNot(HaveOccurred())
			dense.results = []types.Result{{Content: "vector chunk", Score: 0.92}}

			report, err := hybrid.SearchWithScores(context.Background(), "价值", 5)
			Expect(err).ToNot(HaveOccurred())

			Expect(report.Query).To(Equal("价值"))
			Expect(report.VectorCount).To(Equal(1))
			Expect(report.KeywordCount).To(Equal(2))

			Expect(report.RetrievalStat.VectorTopScore).ToNot(BeNil())
			Expect(*report.RetrievalStat.VectorTopScore).To(BeNumerically("~", 0.92, 1e-9))
			Expect(report.RetrievalStat.KeywordTopScore).ToNot(BeNil())
			Expect(*report.RetrievalStat.KeywordTopScore).To(BeNumerically(">", 0))
			Expect(report.RetrievalStat.FusedTopScore).To(BeNumerically(">", 0))

			plain, err := hybrid.Search(context.Background(), "价值", 5)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.Results).To(Equal(plain))
		})

		It("should omit stage top scores for empty stages", func() {
			hybrid := newHybrid(dense, nil, cfg)

			report, err := hybrid.SearchWithScores(context.Background(), "价值", 5)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.VectorCount).To(Equal(0))
			Expect(report.KeywordCount).To(Equal(0))
			Expect(report.RetrievalStat.VectorTopScore).To(BeNil())
			Expect(report.RetrievalStat.KeywordTopScore).To(BeNil())
			Expect(report.RetrievalStat.FusedTopScore).To(BeZero())
		})
	})

	Describe("AddDocuments", func() {
		It("should skip documents the dense backend rejects and report the count", func() {
			dense.storeErr = errors.New("store failed")
			hybrid := newHybrid(dense, nil, cfg)

			skipped, err := hybrid.AddDocuments(context.Background(), []types.Document{
				{Content: "价值 劳动"},
				{Content: "市场 价格"},
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(skipped).To(Equal(2))
			Expect(hybrid.Count()).To(Equal(0))
		})

		It("should count blank documents as skipped", func() {
			hybrid := newHybrid(dense, nil, cfg)

			skipped, err := hybrid.AddDocuments(context.Background(), []types.Document{
				{Content: ""},
				{Content: "价值 劳动"},
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(skipped).To(Equal(1))
			Expect(hybrid.Count()).To(Equal(1))
		})
	})
})
