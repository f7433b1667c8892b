package types

// Document is a unit of indexable text. Documents are immutable once indexed.
type Document struct {
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Result represents a single result from a query.
//
// Identity across retrieval stages is the exact Content string: two results
// with identical content are the same entity for deduplication and fusion.
type Result struct {
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`

	// Score is the stage-native score of the result: cosine similarity for
	// dense retrieval, BM25 for keyword retrieval. Zero when the backend did
	// not report one.
	Score float64 `json:"score,omitempty"`

	// FusedScore is the cumulative weighted reciprocal-rank score assigned
	// by fusion. Only set on fused results.
	FusedScore float64 `json:"fused_score,omitempty"`

	// RerankScore and FinalRank are attached by the external reranker when
	// one is enabled and reachable.
	RerankScore float64 `json:"rerank_score,omitempty"`
	FinalRank   int     `json:"final_rank,omitempty"`
}

// SearchStats carries the per-stage top scores reported by SearchWithScores.
// Vector and keyword top scores are absent when the respective stage returned
// no scored results.
type SearchStats struct {
	VectorTopScore  *float64 `json:"vector_top_score,omitempty"`
	KeywordTopScore *float64 `json:"keyword_top_score,omitempty"`
	FusedTopScore   float64  `json:"fused_top_score"`
}

// SearchReport is the diagnostic variant of a search response.
type SearchReport struct {
	Query         string      `json:"query"`
	VectorCount   int         `json:"vector_results_count"`
	KeywordCount  int         `json:"keyword_results_count"`
	Results       []Result    `json:"results"`
	RetrievalStat SearchStats `json:"retrieval_stats"`
}
