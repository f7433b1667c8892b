package reranker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/charon107/hybridrecall/rag/reranker"
	"github.com/charon107/hybridrecall/rag/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordedRequest struct {
	Model     string `json:"model"`
	Query     string `json:"query"`
	Documents []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"documents"`
	TopN int `json:"top_n"`
}

func rerankServer(status int, body string, record *recordedRequest) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer GinkgoRecover()
		if record != nil {
			Expect(json.NewDecoder(r.Body).Decode(record)).To(Succeed())
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

var _ = Describe("CohereReranker", func() {
	fused := []types.Result{
		{Content: "first chunk", Source: "a"},
		{Content: "second chunk", Source: "b"},
		{Content: "third chunk", Source: "c"},
	}

	Describe("construction", func() {
		It("should fail on a missing API key", func() {
			_, err := NewCohereReranker("http://localhost:9999", "", "")
			Expect(err).To(HaveOccurred())
		})

		It("should fail on a missing base URL", func() {
			_, err := NewCohereReranker("", "key", "")
			Expect(err).To(HaveOccurred())
		})

		It("should default the model", func() {
			r, err := NewCohereReranker("http://localhost:9999", "key", "")
			Expect(err).ToNot(HaveOccurred())
			Expect(r).ToNot(BeNil())
		})
	})

	Describe("Rerank", func() {
		It("should send positional ids and reconstruct the returned order", func() {
			record := &recordedRequest{}
			server := rerankServer(http.StatusOK,
				`{"results":[{"index":2,"relevance_score":0.91},{"index":0,"relevance_score":0.42}]}`,
				record)
			defer server.Close()

			r, err := NewCohereReranker(server.URL, "key", "test-model")
			Expect(err).ToNot(HaveOccurred())

			reordered, err := r.Rerank(context.Background(), "query", fused, 2)
			Expect(err).ToNot(HaveOccurred())

			Expect(record.Model).To(Equal("test-model"))
			Expect(record.Query).To(Equal("query"))
			Expect(record.TopN).To(Equal(2))
			Expect(record.Documents).To(HaveLen(3))
			Expect(record.Documents[0].ID).To(Equal("0"))
			Expect(record.Documents[2].Text).To(Equal("third chunk"))

			Expect(reordered).To(HaveLen(2))
			Expect(reordered[0].Content).To(Equal("third chunk"))
			Expect(reordered[0].RerankScore).To(BeNumerically("~", 0.91, 1e-9))
			Expect(reordered[0].FinalRank).To(Equal(1))
			Expect(reordered[1].Content).To(Equal("first chunk"))
			Expect(reordered[1].FinalRank).To(Equal(2))
		})

		It("should clamp top_n to the number of documents", func() {
			record := &recordedRequest{}
			server := rerankServer(http.StatusOK, `{"results":[]}`, record)
			defer server.Close()

			r, err := NewCohereReranker(server.URL, "key", "")
			Expect(err).ToNot(HaveOccurred())

			_, err = r.Rerank(context.Background(), "query", fused, 10)
			Expect(err).ToNot(HaveOccurred())
			Expect(record.TopN).To(Equal(3))
		})

		It("should skip out-of-range indices in the response", func() {
			server := rerankServer(http.StatusOK,
				`{"results":[{"index":7,"relevance_score":0.9},{"index":1,"relevance_score":0.5}]}`,
				nil)
			defer server.Close()

			r, err := NewCohereReranker(server.URL, "key", "")
			Expect(err).ToNot(HaveOccurred())

			reordered, err := r.Rerank(context.Background(), "query", fused, 3)
			Expect(err).ToNot(HaveOccurred())
			Expect(reordered).To(HaveLen(1))
			Expect(reordered[0].Content).To(Equal("second chunk"))
		})

		It("should retry once on a failing endpoint", func() {
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				if calls == 1 {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				w.Write([]byte(`{"results":[{"index":0,"relevance_score":0.8}]}`))
			}))
			defer server.Close()

			r, err := NewCohereReranker(server.URL, "key", "")
			Expect(err).ToNot(HaveOccurred())

			reordered, err := r.Rerank(context.Background(), "query", fused, 1)
			Expect(err).ToNot(HaveOccurred())
			Expect(calls).To(Equal(2))
			Expect(reordered).To(HaveLen(1))
		})

		It("should error after the retry is exhausted", func() {
			server := rerankServer(http.StatusServiceUnavailable, "", nil)
			defer server.Close()

			r, err := NewCohereReranker(server.URL, "key", "")
			Expect(err).ToNot(HaveOccurred())

			_, err = r.Rerank(context.Background(), "query", fused, 1)
			Expect(err).To(HaveOccurred())
		})

		It("should error on a malformed response", func() {
			server := rerankServer(http.StatusOK, "not json", nil)
			defer server.Close()

			r, err := NewCohereReranker(server.URL, "key", "")
			Expect(err).ToNot(HaveOccurred())

			_, err = r.Rerank(context.Background(), "query", fused, 1)
			Expect(err).To(HaveOccurred())
		})

		It("should return an empty list for empty input without calling the endpoint", func() {
			r, err := NewCohereReranker("http://localhost:1", "key", "")
			Expect(err).ToNot(HaveOccurred())

			reordered, err := r.Rerank(context.Background(), "query", nil, 5)
			Expect(err).ToNot(HaveOccurred())
			Expect(reordered).To(BeEmpty())
		})
	})
})
