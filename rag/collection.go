package rag

import (
	"os"
	"strconv"

	"github.com/charon107/hybridrecall/pkg/tokenizer"
	"github.com/charon107/hybridrecall/rag/engine"
	"github.com/charon107/hybridrecall/rag/interfaces"
	"github.com/charon107/hybridrecall/rag/reranker"
	"github.com/charon107/hybridrecall/rag/types"
	"github.com/mudler/xlog"
	"github.com/sashabaranov/go-openai"
)

// NewChromemHybridCollection assembles a hybrid engine backed by a persistent
// chromem-go collection for the dense side.
func NewChromemHybridCollection(llmClient *openai.Client, collectionName, dbPath, embeddingModel string) (*engine.HybridSearchEngine, error) {
	chromemDB, err := engine.NewChromemDBCollection(collectionName, dbPath, llmClient, embeddingModel)
	if err != nil {
		return nil, err
	}
	return assembleHybrid(chromemDB)
}

// NewPostgresHybridCollection assembles a hybrid engine backed by pgvector
// for the dense side.
func NewPostgresHybridCollection(llmClient *openai.Client, collectionName, databaseURL, embeddingModel string) (*engine.HybridSearchEngine, error) {
	pgDB, err := engine.NewPostgresDBCollection(collectionName, databaseURL, llmClient, embeddingModel)
	if err != nil {
		return nil, err
	}
	return assembleHybrid(pgDB)
}

func assembleHybrid(dense interfaces.Engine) (*engine.HybridSearchEngine, error) {
	cfg := configFromEnv()
	return engine.NewHybridSearchEngine(dense, resolveReranker(cfg), newTokenizer(), cfg)
}

// newTokenizer wires the segmentation and stop-word capabilities. The
// dictionary segmenter is preferred; a whitespace segmenter keeps the engine
// usable when the dictionary cannot be loaded.
func newTokenizer() *tokenizer.Tokenizer {
	var segmenter tokenizer.Segmenter
	gseSegmenter, err := tokenizer.NewGseSegmenter()
	if err != nil {
		xlog.Warn("Failed to load segmentation dictionary, using whitespace segmentation", "error", err)
		segmenter = tokenizer.FieldsSegmenter{}
	} else {
		segmenter = gseSegmenter
	}

	var source interfaces.StopwordSource
	if dir := os.Getenv("STOPWORDS_DIR"); dir != "" {
		source = tokenizer.FileStopwordSource{Dir: dir}
	}
	lang := os.Getenv("STOPWORDS_LANG")
	if lang == "" {
		lang = "zh"
	}

	return tokenizer.New(segmenter, source, lang)
}

// resolveReranker constructs the optional external reranker once. Any
// construction failure leaves reranking disabled; it never propagates.
func resolveReranker(cfg engine.Config) types.Reranker {
	if !cfg.EnableReranking {
		return nil
	}

	r, err := reranker.NewCohereReranker(
		os.Getenv("RERANKER_BASE_URL"),
		os.Getenv("RERANKER_API_KEY"),
		os.Getenv("RERANKER_MODEL"),
	)
	if err != nil {
		xlog.Warn("External reranker unavailable, continuing without reranking", "error", err)
		return nil
	}
	return r
}

func configFromEnv() engine.Config {
	cfg := engine.DefaultConfig()

	if w, ok := envFloat("HYBRID_SEARCH_VECTOR_WEIGHT"); ok {
		cfg.VectorWeight = w
	}
	if w, ok := envFloat("HYBRID_SEARCH_KEYWORD_WEIGHT"); ok {
		cfg.KeywordWeight = w
	}
	if t, ok := envFloat("HYBRID_SIMILARITY_THRESHOLD"); ok {
		cfg.SimilarityThreshold = t
	}
	if k1, ok := envFloat("BM25_K1"); ok {
		cfg.BM25K1 = k1
	}
	if b, ok := envFloat("BM25_B"); ok {
		cfg.BM25B = b
	}
	if v := os.Getenv("HYBRID_RRF_K"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.RRFK = parsed
		}
	}
	cfg.EnableReranking = os.Getenv("ENABLE_RERANKING") == "true"

	return cfg
}

func envFloat(name string) (float64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
