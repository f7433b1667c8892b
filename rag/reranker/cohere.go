package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charon107/hybridrecall/rag/types"
	"github.com/mudler/xlog"
)

// DefaultModel is the cross-encoder model requested when none is configured.
const DefaultModel = "cohere-rerank-3.5"

const defaultTimeout = 15 * time.Second

// CohereReranker reorders a fused result list through a Cohere-compatible
// /v1/rerank endpoint. It is an optional capability: the composition layer
// catches construction failures and runs without it, so a broken reranker
// never prevents retrieval from returning the fused order.
type CohereReranker struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewCohereReranker validates the credential and endpoint up front so that a
// misconfigured reranker fails at construction time, not per query.
func NewCohereReranker(baseURL, apiKey, model string) (*CohereReranker, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("reranker API key must not be empty")
	}
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("reranker base URL must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	return &CohereReranker{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: defaultTimeout},
	}, nil
}

type rerankDocument struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type rerankRequest struct {
	Model     string           `json:"model"`
	Query     string           `json:"query"`
	Documents []rerankDocument `json:"documents"`
	TopN      int              `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank sends the fused list as (id, text) pairs, id being the position
// index, and reconstructs the final ordering from the returned indices. Each
// returned result carries its relevance score and 1-based final rank.
func (r *CohereReranker) Rerank(ctx context.Context, query string, results []types.Result, topN int) ([]types.Result, error) {
	if len(results) == 0 {
		return []types.Result{}, nil
	}

	documents := make([]rerankDocument, len(results))
	for i, res := range results {
		documents[i] = rerankDocument{
			ID:   strconv.Itoa(i),
			Text: strings.TrimSpace(res.Content),
		}
	}

	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	payload, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	})
	if err != nil {
		return nil, err
	}

	resp, err := r.call(ctx, payload)
	if err != nil {
		xlog.Warn("Rerank call failed, retrying once", "error", err)
		resp, err = r.call(ctx, payload)
		if err != nil {
			return nil, err
		}
	}

	reordered := make([]types.Result, 0, len(resp.Results))
	for rank, item := range resp.Results {
		if item.Index < 0 || item.Index >= len(results) {
			continue
		}
		res := results[item.Index]
		res.RerankScore = item.RelevanceScore
		res.FinalRank = rank + 1
		reordered = append(reordered, res)
	}
	return reordered, nil
}

func (r *CohereReranker) call(ctx context.Context, payload []byte) (*rerankResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	httpResp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank endpoint returned status %d", httpResp.StatusCode)
	}

	var resp rerankResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("malformed rerank response: %w", err)
	}
	return &resp, nil
}
