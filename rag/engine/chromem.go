package engine

import (
	"context"
	"fmt"
	"runtime"

	"github.com/charon107/hybridrecall/rag/types"
	"github.com/philippgille/chromem-go"
	"github.com/sashabaranov/go-openai"
)

// ChromemDB is a dense-search backend over a persistent chromem-go
// collection, with embeddings computed through an OpenAI-compatible API.
type ChromemDB struct {
	collectionName  string
	collection      *chromem.Collection
	index           int
	client          *openai.Client
	db              *chromem.DB
	embeddingsModel string
}

// NewChromemDBCollection opens (or creates) the named collection under path.
func NewChromemDBCollection(collection, path string, openaiClient *openai.Client, embeddingsModel string) (*ChromemDB, error) {
	db, err := chromem.NewPersistentDB(path, true)
	if err != nil {
		return nil, err
	}

	chromemDB := &ChromemDB{
		collectionName:  collection,
		index:           1,
		db:              db,
		client:          openaiClient,
		embeddingsModel: embeddingsModel,
	}

	c, err := db.GetOrCreateCollection(collection, nil, chromemDB.embedding())
	if err != nil {
		return nil, err
	}
	chromemDB.collection = c

	count := c.Count()
	if count > 0 {
		chromemDB.index = count + 1
	}

	return chromemDB, nil
}

func (c *ChromemDB) Count() int {
	return c.collection.Count()
}

func (c *ChromemDB) Reset() error {
	if err := c.db.DeleteCollection(c.collectionName); err != nil {
		return fmt.Errorf("error deleting collection: %v", err)
	}
	collection, err := c.db.GetOrCreateCollection(c.collectionName, nil, c.embedding())
	if err != nil {
		return fmt.Errorf("error creating collection: %v", err)
	}
	c.collection = collection
	c.index = 1
	return nil
}

func (c *ChromemDB) embedding() chromem.EmbeddingFunc {
	return chromem.EmbeddingFunc(
		func(ctx context.Context, text string) ([]float32, error) {
			resp, err := c.client.CreateEmbeddings(ctx,
				openai.EmbeddingRequestStrings{
					Input: []string{text},
					Model: openai.EmbeddingModel(c.embeddingsModel),
				},
			)
			if err != nil {
				return []float32{}, fmt.Errorf("error getting embeddings: %v", err)
			}

			if len(resp.Data) == 0 {
				return []float32{}, fmt.Errorf("no response from OpenAI API")
			}

			return resp.Data[0].Embedding, nil
		},
	)
}

func (c *ChromemDB) Store(ctx context.Context, s string, metadata map[string]string) error {
	defer func() {
		c.index++
	}()
	if s == "" {
		return fmt.Errorf("empty string")
	}

	return c.collection.AddDocuments(ctx, []chromem.Document{
		{
			Metadata: metadata,
			Content:  s,
			ID:       fmt.Sprint(c.index),
		},
	}, runtime.NumCPU())
}

// Search returns up to topK hits with cosine similarity at or above
// threshold, most similar first.
func (c *ChromemDB) Search(ctx context.Context, query string, topK int, threshold float64) ([]types.Result, error) {
	count := c.collection.Count()
	if count == 0 || topK <= 0 {
		return []types.Result{}, nil
	}
	n := topK
	if n > count {
		n = count
	}

	chromemResults, err := c.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, err
	}

	results := make([]types.Result, 0, len(chromemResults))
	for _, r := range chromemResults {
		if float64(r.Similarity) < threshold {
			continue
		}
		results = append(results, types.Result{
			Content:  r.Content,
			Source:   r.Metadata["source"],
			Metadata: r.Metadata,
			Score:    float64(r.Similarity),
		})
	}
	return results, nil
}
