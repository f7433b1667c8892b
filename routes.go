package main

import (
	"net/http"

	"github.com/charon107/hybridrecall/rag"
	"github.com/charon107/hybridrecall/rag/engine"
	"github.com/charon107/hybridrecall/rag/types"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sashabaranov/go-openai"
)

type collectionList map[string]*engine.HybridSearchEngine

var collections = collectionList{}

func startAPI(listenAddress string) {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	config := openai.DefaultConfig(openAIKey)
	config.BaseURL = openAIBaseURL

	openAIClient := openai.NewClientWithConfig(config)

	// API routes for managing collections
	e.POST("/api/collections", createCollection(collections, openAIClient, embeddingModel))
	e.GET("/api/collections", listCollections)
	e.POST("/api/collections/:name/documents", addDocuments(collections))
	e.POST("/api/collections/:name/search", search(collections))
	e.POST("/api/collections/:name/search_with_scores", searchWithScores(collections))
	e.POST("/api/collections/:name/reset", reset(collections))

	e.Logger.Fatal(e.Start(listenAddress))
}

// createCollection handles creating a new collection
func createCollection(collections collectionList, client *openai.Client, embeddingModel string) func(c echo.Context) error {
	return func(c echo.Context) error {
		type request struct {
			Name string `json:"name"`
		}

		r := new(request)
		if err := c.Bind(r); err != nil || r.Name == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		}
		if _, exists := collections[r.Name]; exists {
			return c.JSON(http.StatusConflict, map[string]string{"error": "Collection already exists"})
		}

		var (
			hybrid *engine.HybridSearchEngine
			err    error
		)
		switch vectorEngine {
		case "postgres":
			hybrid, err = rag.NewPostgresHybridCollection(client, r.Name, databaseURL, embeddingModel)
		default:
			hybrid, err = rag.NewChromemHybridCollection(client, r.Name, collectionDB, embeddingModel)
		}
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}

		collections[r.Name] = hybrid
		return c.JSON(http.StatusCreated, map[string]string{"name": r.Name})
	}
}

func listCollections(c echo.Context) error {
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	return c.JSON(http.StatusOK, names)
}

// addDocuments indexes a batch of documents, reporting how many were skipped
func addDocuments(collections collectionList) func(c echo.Context) error {
	return func(c echo.Context) error {
		collection, exists := collections[c.Param("name")]
		if !exists {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Collection not found"})
		}

		type request struct {
			Documents []types.Document `json:"documents"`
		}
		r := new(request)
		if err := c.Bind(r); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		}

		skipped, err := collection.AddDocuments(c.Request().Context(), r.Documents)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}

		return c.JSON(http.StatusOK, map[string]int{
			"indexed": len(r.Documents) - skipped,
			"skipped": skipped,
		})
	}
}

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

func (r *searchRequest) topK() int {
	if r.MaxResults <= 0 {
		return 5
	}
	return r.MaxResults
}

func search(collections collectionList) func(c echo.Context) error {
	return func(c echo.Context) error {
		collection, exists := collections[c.Param("name")]
		if !exists {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Collection not found"})
		}

		r := new(searchRequest)
		if err := c.Bind(r); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		}

		results, err := collection.Search(c.Request().Context(), r.Query, r.topK())
		if err != nil {
			return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, results)
	}
}

func searchWithScores(collections collectionList) func(c echo.Context) error {
	return func(c echo.Context) error {
		collection, exists := collections[c.Param("name")]
		if !exists {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Collection not found"})
		}

		r := new(searchRequest)
		if err := c.Bind(r); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		}

		report, err := collection.SearchWithScores(c.Request().Context(), r.Query, r.topK())
		if err != nil {
			return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, report)
	}
}

func reset(collections collectionList) func(c echo.Context) error {
	return func(c echo.Context) error {
		collection, exists := collections[c.Param("name")]
		if !exists {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Collection not found"})
		}

		if err := collection.Reset(); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
