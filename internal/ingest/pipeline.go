package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codeatlas/backend/internal/metrics"
	"github.com/codeatlas/backend/internal/models"
	"github.com/codeatlas/backend/internal/parser"
)

// Directories that never contain first-party source worth indexing.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
	"dist":         true,
	"build":        true,
	"target":       true,
}

const (
	maxFileSize    = 1 << 20 // 1 MiB
	defaultWorkers = 4
)

// Ingestor writes one parsed file to the graph. Satisfied by
// db.GraphIngestor.
type Ingestor interface {
	Ingest(ctx context.Context, parsed *models.ParsedFile) (int, error)
}

// Pipeline walks a repository checkout, parses every source file, and writes
// the results into the graph. Files are processed concurrently; one file's
// failure is recorded and does not stop the run.
type Pipeline struct {
	parser   *parser.Parser
	ingestor Ingestor
	logger   *slog.Logger
	workers  int
}

func NewPipeline(p *parser.Parser, ingestor Ingestor, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		parser:   p,
		ingestor: ingestor,
		logger:   logger,
		workers:  defaultWorkers,
	}
}

// Run indexes the checkout at rootPath for the given repository.
func (p *Pipeline) Run(ctx context.Context, repoID, rootPath string) (*models.IndexResult, error) {
	m := metrics.Get()
	result := &models.IndexResult{RepoID: repoID}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	walkErr := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > maxFileSize {
			return nil
		}

		relPath, err := filepath.Rel(rootPath, path)
		if err != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			parsed, err := p.processFile(gctx, repoID, path, relPath)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, relPath+": "+err.Error())
				return nil
			}
			result.FilesProcessed++
			result.EntitiesFound += parsed
			return nil
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		return result, err
	}
	if walkErr != nil {
		return result, walkErr
	}

	p.logger.Info("indexing finished",
		"repo_id", repoID,
		"files", result.FilesProcessed,
		"entities", result.EntitiesFound,
		"errors", len(result.Errors))
	if len(result.Errors) == 0 {
		m.IndexRunsTotal.WithLabelValues("ok").Inc()
	} else {
		m.IndexRunsTotal.WithLabelValues("partial").Inc()
	}
	return result, nil
}

// processFile parses and ingests one file, returning the number of entities
// written.
func (p *Pipeline) processFile(ctx context.Context, repoID, absPath, relPath string) (int, error) {
	m := metrics.Get()

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return 0, err
	}
	content := parser.DecodeBytes(raw)

	parseStart := time.Now()
	parsed := p.parser.Parse(ctx, relPath, content)
	m.ParseDuration.Observe(time.Since(parseStart).Seconds())
	m.FilesParsed.WithLabelValues(parsed.Language).Inc()
	if parsed.UsedFallback {
		m.RegexFallbacks.Inc()
	}

	record := &models.ParsedFile{
		RepoID:        repoID,
		Filename:      filepath.Base(relPath),
		OriginalPath:  relPath,
		Language:      parsed.Language,
		Entities:      parsed.Entities,
		Relationships: parsed.Relationships,
	}

	ingestStart := time.Now()
	written, err := p.ingestor.Ingest(ctx, record)
	m.IngestDuration.Observe(time.Since(ingestStart).Seconds())
	if err != nil {
		return 0, err
	}
	m.EntitiesIngested.Add(float64(written))
	return written, nil
}
