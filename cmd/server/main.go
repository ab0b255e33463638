package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/codeatlas/backend/internal/api"
	"github.com/codeatlas/backend/internal/config"
	"github.com/codeatlas/backend/internal/db"
	"github.com/codeatlas/backend/internal/embedding"
	"github.com/codeatlas/backend/internal/git"
	"github.com/codeatlas/backend/internal/ingest"
	"github.com/codeatlas/backend/internal/llm"
	"github.com/codeatlas/backend/internal/parser"
	"github.com/codeatlas/backend/internal/rag"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbClient, err := db.NewNeo4jClient(ctx, db.Neo4jConfig{
		URI:      cfg.Neo4jURI,
		Username: cfg.Neo4jUser,
		Password: cfg.Neo4jPass,
		Database: cfg.Neo4jDatabase,
	})
	if err != nil {
		logger.Error("failed to connect to neo4j", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	if err := dbClient.EnsureVectorIndexes(ctx, cfg.EmbeddingDimensions); err != nil {
		logger.Error("vector index setup failed", "error", err)
		os.Exit(1)
	}

	embedder := embedding.NewTEIClient(cfg.EmbeddingURL, cfg.EmbeddingDimensions)
	llmClient := llm.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, logger)

	ingestor := db.NewGraphIngestor(dbClient, embedder, logger)
	pipeline := ingest.NewPipeline(parser.New(llmClient, logger), ingestor, logger)
	retriever := db.NewRetriever(dbClient, embedder, logger)
	composer := rag.NewComposer(retriever, llmClient, logger)
	reader := db.NewGraphReader(dbClient)
	gitSvc := git.NewService(cfg.ReposPath, logger)

	app := fiber.New(fiber.Config{
		AppName: "CodeAtlas API",
	})

	handler := api.NewHandler(cfg, dbClient, gitSvc, pipeline, reader, composer, logger)
	api.SetupRoutes(app, handler)

	logger.Info("starting backend", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
