package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/codeatlas/backend/internal/config"
	"github.com/codeatlas/backend/internal/db"
	"github.com/codeatlas/backend/internal/git"
	"github.com/codeatlas/backend/internal/ingest"
	"github.com/codeatlas/backend/internal/metrics"
	"github.com/codeatlas/backend/internal/models"
	"github.com/codeatlas/backend/internal/rag"
)

type Handler struct {
	cfg      *config.Config
	dbClient *db.Neo4jClient
	gitSvc   *git.Service
	pipeline *ingest.Pipeline
	reader   *db.GraphReader
	composer *rag.Composer
	logger   *slog.Logger
}

func NewHandler(cfg *config.Config, dbClient *db.Neo4jClient, gitSvc *git.Service, pipeline *ingest.Pipeline, reader *db.GraphReader, composer *rag.Composer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:      cfg,
		dbClient: dbClient,
		gitSvc:   gitSvc,
		pipeline: pipeline,
		reader:   reader,
		composer: composer,
		logger:   logger,
	}
}

type chatRequest struct {
	Message  string        `json:"message"`
	History  []rag.Message `json:"history"`
	RepoID   string        `json:"repo_id"`
	FilePath string        `json:"file_path"`
	Context  string        `json:"context"`
}

// Chat answers a question about the indexed codebase.
func (h *Handler) Chat(c fiber.Ctx) error {
	var req chatRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Message == "" {
		return c.Status(400).JSON(fiber.Map{"error": "message is required"})
	}

	answer, err := h.composer.Answer(c.Context(), rag.Request{
		Question:    req.Message,
		History:     req.History,
		RepoID:      req.RepoID,
		FilePath:    req.FilePath,
		ContextJSON: req.Context,
	})
	if err != nil {
		h.logger.Error("chat failed", "error", err)
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(answer)
}

// ClearDatabase wipes the whole graph.
func (h *Handler) ClearDatabase(c fiber.Ctx) error {
	if err := db.ClearDatabase(c.Context(), h.dbClient); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "database cleared"})
}

// GraphFiles lists indexed files with entity counts.
func (h *Handler) GraphFiles(c fiber.Ctx) error {
	files, err := h.reader.ListFiles(c.Context(), c.Query("repo_id"))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"files": files})
}

// GraphFileData returns one file's subgraph for visualization.
func (h *Handler) GraphFileData(c fiber.Ctx) error {
	path := c.Query("path")
	if path == "" {
		return c.Status(400).JSON(fiber.Map{"error": "query parameter 'path' is required"})
	}
	graph, err := h.reader.FileData(c.Context(), path)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(graph)
}

// ListRepositories returns all repositories
func (h *Handler) ListRepositories(c fiber.Ctx) error {
	repos, err := db.ListRepositories(c.Context(), h.dbClient)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	if repos == nil {
		repos = []*models.Repository{}
	}
	return c.JSON(repos)
}

// GetRepository returns a single repository
func (h *Handler) GetRepository(c fiber.Ctx) error {
	id := c.Params("id")
	repo, err := db.GetRepository(c.Context(), h.dbClient, id)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	if repo == nil {
		return c.Status(404).JSON(fiber.Map{"error": "repository not found"})
	}
	return c.JSON(repo)
}

// CreateRepository adds a new repository and starts indexing
func (h *Handler) CreateRepository(c fiber.Ctx) error {
	var input models.CreateRepositoryInput
	if err := c.Bind().Body(&input); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	if input.URL == "" {
		return c.Status(400).JSON(fiber.Map{"error": "url is required"})
	}

	repo := &models.Repository{
		URL:           input.URL,
		Name:          git.ExtractRepoName(input.URL),
		DefaultBranch: input.DefaultBranch,
		Status:        "pending",
	}
	if repo.DefaultBranch == "" {
		repo.DefaultBranch = "main"
	}

	created, err := db.CreateRepository(c.Context(), h.dbClient, repo)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}

	go h.indexRepository(created)

	return c.Status(201).JSON(created)
}

// DeleteRepository removes a repository and everything ingested for it
func (h *Handler) DeleteRepository(c fiber.Ctx) error {
	id := c.Params("id")

	if err := db.DeleteRepository(c.Context(), h.dbClient, id); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}

	return c.SendStatus(204)
}

// ReindexRepository triggers re-indexing
func (h *Handler) ReindexRepository(c fiber.Ctx) error {
	id := c.Params("id")

	repo, err := db.GetRepository(c.Context(), h.dbClient, id)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	if repo == nil {
		return c.Status(404).JSON(fiber.Map{"error": "repository not found"})
	}

	db.UpdateRepositoryStatus(c.Context(), h.dbClient, id, "indexing")
	go h.indexRepository(repo)

	return c.JSON(fiber.Map{"status": "indexing started"})
}

// indexRepository runs the full indexing flow in the background: clone,
// clear previous data, walk and ingest, update stats.
func (h *Handler) indexRepository(repo *models.Repository) {
	ctx := context.Background()

	fail := func(stage string, err error) {
		h.logger.Error("indexing failed", "repo", repo.Name, "stage", stage, "error", err)
		metrics.Get().IndexRunsTotal.WithLabelValues("error").Inc()
		db.UpdateRepositoryStatus(ctx, h.dbClient, repo.ID, "error")
	}

	repoPath, err := h.gitSvc.Clone(ctx, repo.URL, repo.DefaultBranch)
	if err != nil {
		fail("clone", err)
		return
	}
	if commit, err := h.gitSvc.CurrentCommit(ctx, repoPath); err == nil {
		h.logger.Info("checkout ready", "repo", repo.Name, "commit", commit)
	}

	if err := db.ClearRepositoryData(ctx, h.dbClient, repo.ID); err != nil {
		fail("clear", err)
		return
	}
	db.UpdateRepositoryStatus(ctx, h.dbClient, repo.ID, "indexing")

	result, err := h.pipeline.Run(ctx, repo.ID, repoPath)
	if err != nil {
		fail("pipeline", err)
		return
	}

	if err := db.UpdateRepositoryStats(ctx, h.dbClient, repo.ID, result.FilesProcessed, result.EntitiesFound); err != nil {
		fail("stats", err)
		return
	}

	h.logger.Info("indexing complete", "repo", repo.Name,
		"files", result.FilesProcessed, "entities", result.EntitiesFound, "errors", len(result.Errors))
}

// Health reports connectivity to the graph store.
func (h *Handler) Health(c fiber.Ctx) error {
	if err := h.dbClient.Ping(c.Context()); err != nil {
		return c.Status(503).JSON(fiber.Map{"status": "degraded", "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok", "service": "codeatlas-backend"})
}
