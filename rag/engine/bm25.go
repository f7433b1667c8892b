package engine

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/charon107/hybridrecall/pkg/tokenizer"
	"github.com/charon107/hybridrecall/rag/types"
	"github.com/mudler/xlog"
)

// Default BM25 parameters: k1 controls term-frequency saturation, b the degree
// of document-length normalization.
const (
	DefaultBM25K1 = 1.5
	DefaultBM25B  = 0.75
)

// BM25Index maintains a sparse term index over a document collection and
// scores queries against it with BM25. Adding documents rebuilds the corpus
// statistics from scratch over the full corpus; there is no delete.
//
// Reads may run concurrently against a stable corpus; mutation is serialized
// behind the write lock.
type BM25Index struct {
	mu  sync.RWMutex
	tok *tokenizer.Tokenizer
	k1  float64
	b   float64

	documents []types.Document
	termFreqs []map[string]int // per-document term frequencies
	docLens   []int            // per-document term counts
	docFreq   map[string]int   // corpus-wide document frequency per term
	avgLen    float64
}

// NewBM25Index creates an empty index. Non-positive parameters fall back to
// the defaults.
func NewBM25Index(tok *tokenizer.Tokenizer, k1, b float64) *BM25Index {
	if k1 <= 0 {
		k1 = DefaultBM25K1
	}
	if b <= 0 {
		b = DefaultBM25B
	}
	return &BM25Index{
		tok:     tok,
		k1:      k1,
		b:       b,
		docFreq: map[string]int{},
	}
}

// AddDocuments appends docs to the corpus and rebuilds the index in full.
// Malformed documents (blank content) are skipped individually rather than
// aborting the batch; the skipped count is returned.
func (i *BM25Index) AddDocuments(docs []types.Document) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	skipped := 0
	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			skipped++
			xlog.Warn("Skipping document with blank content", "source", doc.Source)
			continue
		}
		i.documents = append(i.documents, doc)
	}

	i.rebuild()
	return skipped
}

// rebuild recomputes all corpus statistics. Caller holds the write lock.
func (i *BM25Index) rebuild() {
	i.termFreqs = make([]map[string]int, 0, len(i.documents))
	i.docLens = make([]int, 0, len(i.documents))
	i.docFreq = map[string]int{}

	totalLen := 0
	for _, doc := range i.documents {
		terms := i.tok.Tokenize(doc.Content)
		freq := make(map[string]int, len(terms))
		for _, term := range terms {
			freq[term]++
		}
		for term := range freq {
			i.docFreq[term]++
		}
		i.termFreqs = append(i.termFreqs, freq)
		i.docLens = append(i.docLens, len(terms))
		totalLen += len(terms)
	}

	if len(i.documents) > 0 {
		i.avgLen = float64(totalLen) / float64(len(i.documents))
	} else {
		i.avgLen = 0
	}
}

// Count returns the number of indexed documents.
func (i *BM25Index) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.documents)
}

// Reset clears the corpus.
func (i *BM25Index) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.documents = nil
	i.rebuild()
}

// Search scores the full corpus against query and returns at most topK
// results with score > 0, best first. Ties keep document insertion order.
// An empty corpus or an empty tokenized query yields an empty list.
func (i *BM25Index) Search(query string, topK int) []types.Result {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if len(i.documents) == 0 || i.avgLen == 0 || topK <= 0 {
		return []types.Result{}
	}

	queryTerms := i.tok.Tokenize(query)
	if len(queryTerms) == 0 {
		return []types.Result{}
	}

	type scored struct {
		idx   int
		score float64
	}
	hits := []scored{}
	for idx := range i.documents {
		score := i.scoreDocument(queryTerms, idx)
		if score > 0 {
			hits = append(hits, scored{idx: idx, score: score})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].score > hits[b].score
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	results := make([]types.Result, 0, len(hits))
	for _, h := range hits {
		doc := i.documents[h.idx]
		results = append(results, types.Result{
			Content:  doc.Content,
			Source:   sourcePreview(doc),
			Metadata: doc.Metadata,
			Score:    h.score,
		})
	}
	return results
}

// scoreDocument sums idf(t)*tf(t,d) over the query terms present in the
// document. The idf uses the +1 smoothing inside the logarithm so that a term
// occurring in most of the corpus still contributes a non-negative score.
func (i *BM25Index) scoreDocument(queryTerms []string, idx int) float64 {
	freq := i.termFreqs[idx]
	docLen := float64(i.docLens[idx])
	n := float64(len(i.documents))

	score := 0.0
	for _, term := range queryTerms {
		tf, ok := freq[term]
		if !ok {
			continue
		}

		df := float64(i.docFreq[term])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))

		tfNorm := float64(tf) * (i.k1 + 1) /
			(float64(tf) + i.k1*(1-i.b+i.b*docLen/i.avgLen))

		score += idf * tfNorm
	}
	return score
}

// sourcePreview prefers the declared source and falls back to a short
// whitespace-collapsed content preview when none is set.
func sourcePreview(doc types.Document) string {
	if s := strings.TrimSpace(doc.Source); s != "" {
		return s
	}
	collapsed := strings.Join(strings.Fields(doc.Content), " ")
	runes := []rune(collapsed)
	if len(runes) > 80 {
		return string(runes[:80]) + "..."
	}
	return collapsed
}
