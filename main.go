package main

import "os"

var (
	listenAddress  = envOr("LISTEN_ADDRESS", ":8080")
	openAIKey      = os.Getenv("OPENAI_API_KEY")
	openAIBaseURL  = os.Getenv("OPENAI_API_BASE_URL")
	embeddingModel = envOr("EMBEDDING_MODEL", "granite-embedding-107m-multilingual")
	vectorEngine   = envOr("VECTOR_ENGINE", "chromem")
	collectionDB   = envOr("COLLECTION_DB_PATH", "collections-db")
	databaseURL    = os.Getenv("DATABASE_URL")
)

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func main() {
	startAPI(listenAddress)
}
