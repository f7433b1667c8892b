package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charon107/hybridrecall/rag/types"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mudler/xlog"
	"github.com/sashabaranov/go-openai"
)

// PostgresDB is a dense-search backend over pgvector: documents and their
// embeddings live in a per-collection table and similarity search runs as a
// cosine-distance query.
type PostgresDB struct {
	pool            *pgxpool.Pool
	collectionName  string
	tableName       string
	client          *openai.Client
	embeddingsModel string
	embeddingDims   int
}

// NewPostgresDBCollection connects to databaseURL and prepares the
// per-collection table and vector index.
func NewPostgresDBCollection(collectionName, databaseURL string, openaiClient *openai.Client, embeddingsModel string) (*PostgresDB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for PostgreSQL engine")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Probe the embedding dimensionality once so the vector column matches.
	testEmbedding, err := getTestEmbedding(openaiClient, embeddingsModel)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to get test embedding: %w", err)
	}

	pg := &PostgresDB{
		pool:            pool,
		collectionName:  collectionName,
		tableName:       sanitizeTableName(collectionName),
		client:          openaiClient,
		embeddingsModel: embeddingsModel,
		embeddingDims:   len(testEmbedding),
	}

	if err := pg.setupDatabase(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}

	return pg, nil
}

func sanitizeTableName(name string) string {
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, ".", "_")
	name = strings.ReplaceAll(name, " ", "_")
	// Ensure it starts with a letter
	if len(name) > 0 && (name[0] < 'a' || name[0] > 'z') && (name[0] < 'A' || name[0] > 'Z') {
		name = "col_" + name
	}
	return "documents_" + name
}

func getTestEmbedding(client *openai.Client, model string) ([]float32, error) {
	resp, err := client.CreateEmbeddings(context.Background(),
		openai.EmbeddingRequestStrings{
			Input: []string{"test"},
			Model: openai.EmbeddingModel(model),
		},
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding data returned")
	}
	return resp.Data[0].Embedding, nil
}

func (p *PostgresDB) setupDatabase() error {
	ctx := context.Background()

	_, err := p.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to enable vector extension: %w", err)
	}

	_, err = p.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id SERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			source TEXT,
			metadata JSONB,
			embedding VECTOR(%d)
		)
	`, p.tableName, p.embeddingDims))
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	_, err = p.pool.Exec(ctx, fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s
		USING hnsw(embedding vector_cosine_ops)
	`, p.tableName, p.tableName))
	if err != nil {
		xlog.Warn("Failed to create HNSW index, queries fall back to sequential scan", "error", err)
	}

	return nil
}

func formatVector(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = fmt.Sprintf("%.6f", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (p *PostgresDB) embed(ctx context.Context, text string) (string, error) {
	resp, err := p.client.CreateEmbeddings(ctx,
		openai.EmbeddingRequestStrings{
			Input: []string{text},
			Model: openai.EmbeddingModel(p.embeddingsModel),
		},
	)
	if err != nil {
		return "", fmt.Errorf("error getting embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("no response from OpenAI API")
	}
	return formatVector(resp.Data[0].Embedding), nil
}

func (p *PostgresDB) Count() int {
	var count int
	err := p.pool.QueryRow(context.Background(), fmt.Sprintf("SELECT COUNT(*) FROM %s", p.tableName)).Scan(&count)
	if err != nil {
		xlog.Error("Failed to count documents", "error", err)
		return 0
	}
	return count
}

func (p *PostgresDB) Reset() error {
	_, err := p.pool.Exec(context.Background(), fmt.Sprintf("TRUNCATE %s", p.tableName))
	if err != nil {
		return fmt.Errorf("failed to truncate table: %w", err)
	}
	return nil
}

func (p *PostgresDB) Store(ctx context.Context, s string, metadata map[string]string) error {
	if s == "" {
		return fmt.Errorf("empty string")
	}

	embedding, err := p.embed(ctx, s)
	if err != nil {
		return err
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		metadataJSON = []byte("{}")
	}

	_, err = p.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (content, source, metadata, embedding)
		VALUES ($1, $2, $3, $4::vector)
	`, p.tableName), s, metadata["source"], metadataJSON, embedding)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Search embeds the query and ranks documents by cosine similarity, keeping
// hits at or above threshold.
func (p *PostgresDB) Search(ctx context.Context, query string, topK int, threshold float64) ([]types.Result, error) {
	if topK <= 0 {
		return []types.Result{}, nil
	}

	embedding, err := p.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, fmt.Sprintf(`
		SELECT content, COALESCE(source, ''), COALESCE(metadata, '{}'::jsonb),
		       1 - (embedding <=> $1::vector) AS similarity
		FROM %s
		WHERE 1 - (embedding <=> $1::vector) >= $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3
	`, p.tableName), embedding, threshold, topK)
	if err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}
	defer rows.Close()

	results := []types.Result{}
	for rows.Next() {
		var (
			content, source string
			metadataJSON    []byte
			similarity      float64
		)
		if err := rows.Scan(&content, &source, &metadataJSON, &similarity); err != nil {
			xlog.Warn("Failed to scan search row", "error", err)
			continue
		}

		metadata := map[string]string{}
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			metadata = map[string]string{}
		}

		results = append(results, types.Result{
			Content:  content,
			Source:   source,
			Metadata: metadata,
			Score:    similarity,
		})
	}
	return results, rows.Err()
}
