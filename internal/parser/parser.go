package parser

import (
	"context"
	"log/slog"

	"github.com/codeatlas/backend/internal/llm"
	"github.com/codeatlas/backend/internal/models"
)

// Result is the outcome of parsing one file.
type Result struct {
	Language      string
	Entities      []models.CodeEntity
	Relationships []models.CodeRelationship
	UsedFallback  bool
}

// Parser extracts code entities from source files. When a model client is
// configured it is tried first; the regex engine handles every file the
// model could not. The two outputs are never merged.
type Parser struct {
	ai     *AIExtractor
	logger *slog.Logger
}

// New builds a Parser. client may be nil, in which case every file goes
// straight to the regex engine.
func New(client llm.Client, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Parser{logger: logger}
	if client != nil {
		p.ai = NewAIExtractor(client, logger)
	}
	return p
}

// Parse detects the file's language and extracts entities for it. filePath
// is the repository-relative path recorded on every extracted entity.
func (p *Parser) Parse(ctx context.Context, filePath, content string) Result {
	language := DetectLanguage(filePath, content)

	if p.ai != nil {
		entities, relationships := p.ai.Extract(ctx, content, language, filePath)
		if len(entities) > 0 {
			return Result{
				Language:      language,
				Entities:      entities,
				Relationships: relationships,
			}
		}
		p.logger.Info("model extraction empty, using regex engine",
			"file", filePath, "language", language)
	}

	entities, relationships := ExtractWithRegex(content, language, filePath)
	return Result{
		Language:      language,
		Entities:      entities,
		Relationships: relationships,
		UsedFallback:  true,
	}
}
