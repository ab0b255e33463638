package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/codeatlas/backend/internal/embedding"
	"github.com/codeatlas/backend/internal/metrics"
	"github.com/codeatlas/backend/internal/models"
)

// GraphIngestor writes parsed files into the graph. All writes are
// merge-on-key: entities key on (name, file_path), files on path, so
// re-ingesting the same file updates nodes in place instead of duplicating
// them.
type GraphIngestor struct {
	client   *Neo4jClient
	embedder embedding.Provider
	logger   *slog.Logger
}

func NewGraphIngestor(client *Neo4jClient, embedder embedding.Provider, logger *slog.Logger) *GraphIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphIngestor{client: client, embedder: embedder, logger: logger}
}

// Ingest writes one parsed file: the file node, its entities with embeddings,
// import edges (with placeholder targets for unresolved modules), and the
// remaining relationships. Returns the number of entities written. A record
// without a filename is skipped with a warning; other failures propagate so
// the caller can retry the file.
func (g *GraphIngestor) Ingest(ctx context.Context, parsed *models.ParsedFile) (int, error) {
	if parsed.Filename == "" {
		g.logger.Warn("skipping parsed record without filename", "repo_id", parsed.RepoID)
		return 0, nil
	}

	path := parsed.OriginalPath
	if path == "" {
		path = parsed.Filename
	}

	embeddings := g.embedEntities(ctx, parsed.Entities)

	written := 0
	_, err := g.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := mergeFileNode(ctx, tx, parsed, path); err != nil {
			return nil, err
		}

		// Imports are deferred so resolution can see every sibling entity.
		var imports []models.CodeEntity
		for i, entity := range parsed.Entities {
			if strings.EqualFold(entity.EntityType, "import") {
				imports = append(imports, entity)
				continue
			}
			if err := mergeEntityNode(ctx, tx, parsed, path, entity, embeddings[i]); err != nil {
				return nil, err
			}
			written++
		}

		for _, imp := range imports {
			if err := g.mergeImport(ctx, tx, parsed, path, imp); err != nil {
				return nil, err
			}
			written++
		}

		for _, rel := range parsed.Relationships {
			if err := g.mergeRelationship(ctx, tx, path, rel); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to ingest %s: %w", parsed.Filename, err)
	}
	return written, nil
}

// embedEntities returns one vector per entity, positionally aligned. An
// embedding failure is logged and leaves zero vectors; it never fails the
// file.
func (g *GraphIngestor) embedEntities(ctx context.Context, entities []models.CodeEntity) [][]float32 {
	texts := make([]string, len(entities))
	for i, entity := range entities {
		texts[i] = entity.Description
	}

	if g.embedder == nil {
		return make([][]float32, len(entities))
	}

	vectors, err := g.embedder.EmbedBatch(ctx, texts)
	if err != nil || len(vectors) != len(entities) {
		g.logger.Warn("embedding failed, storing zero vectors", "error", err)
		metrics.Get().EmbeddingErrors.Inc()
		vectors = make([][]float32, len(entities))
		for i := range vectors {
			vectors[i] = make([]float32, g.embedder.Dimensions())
		}
	}
	return vectors
}

func mergeFileNode(ctx context.Context, tx neo4j.ManagedTransaction, parsed *models.ParsedFile, path string) error {
	query := fmt.Sprintf(`
		MERGE (f:File {path: $path})
		SET f:%s,
		    f.name = $name,
		    f.file_path = $path,
		    f.repo_id = $repoId,
		    f.language = $language
	`, FileLabel(path))

	_, err := tx.Run(ctx, query, map[string]any{
		"path":     path,
		"name":     parsed.Filename,
		"repoId":   parsed.RepoID,
		"language": parsed.Language,
	})
	return err
}

func mergeEntityNode(ctx context.Context, tx neo4j.ManagedTransaction, parsed *models.ParsedFile, path string, entity models.CodeEntity, vector []float32) error {
	if entity.Name == "" {
		return nil
	}

	params := map[string]any{
		"name":        entity.Name,
		"filePath":    entity.FilePath,
		"description": entity.Description,
		"repoId":      parsed.RepoID,
		"props":       entity.Properties.Sanitized(),
		"path":        path,
	}
	setEmbedding := ""
	if len(vector) > 0 {
		params["embedding"] = vector
		setEmbedding = "e.embedding = $embedding,"
	}

	query := fmt.Sprintf(`
		MERGE (e:%s {name: $name, file_path: $filePath})
		SET e.description = $description,
		    %s
		    e.repo_id = $repoId,
		    e += $props
		WITH e
		MATCH (f:File {path: $path})
		MERGE (f)-[:CONTAINS]->(e)
	`, EntityLabel(entity.EntityType), setEmbedding)

	_, err := tx.Run(ctx, query, params)
	return err
}

// mergeImport creates the import entity's edge from its file. The target is
// resolved against already-merged nodes by name or file-path suffix; when
// nothing matches, a placeholder node is merged so repeated imports of the
// same module across files converge on one node.
func (g *GraphIngestor) mergeImport(ctx context.Context, tx neo4j.ManagedTransaction, parsed *models.ParsedFile, path string, imp models.CodeEntity) error {
	target := imp.Name
	if target == "" {
		return nil
	}

	resolveQuery := `
		MATCH (t)
		WHERE t.name = $target
		   OR (t:File AND (t.path = $target OR t.path ENDS WITH $suffix))
		RETURN count(t) > 0 AS found
	`
	records, err := tx.Run(ctx, resolveQuery, map[string]any{
		"target": target,
		"suffix": "/" + target,
	})
	if err != nil {
		return err
	}
	found := false
	if records.Next(ctx) {
		if v, ok := records.Record().Get("found"); ok {
			found, _ = v.(bool)
		}
	}
	if err := records.Err(); err != nil {
		return err
	}

	if found {
		query := `
			MATCH (f:File {path: $path})
			MATCH (t)
			WHERE t.name = $target
			   OR (t:File AND (t.path = $target OR t.path ENDS WITH $suffix))
			WITH f, t LIMIT 1
			MERGE (f)-[r:IMPORTS]->(t)
			SET r.context = $context
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"path":    path,
			"target":  target,
			"suffix":  "/" + target,
			"context": imp.Description,
		})
		return err
	}

	label := "ExternalModule"
	if std, ok := imp.Properties["is_standard_library"].(bool); ok && std {
		label = "StandardLibrary"
	}
	query := fmt.Sprintf(`
		MATCH (f:File {path: $path})
		MERGE (t:%s {name: $target})
		ON CREATE SET t.is_placeholder = true,
		              t.description = $description
		MERGE (f)-[r:IMPORTS]->(t)
		SET r.context = $context
	`, label)
	_, err = tx.Run(ctx, query, map[string]any{
		"path":        path,
		"target":      target,
		"description": fmt.Sprintf("External module %s", target),
		"context":     imp.Description,
	})
	return err
}

// mergeRelationship writes one non-import edge. Same-file endpoints are
// matched first; endpoints with the same names in different files get a
// cross_file-flagged edge. Edges with an empty endpoint or a type that
// sanitizes to nothing are skipped.
func (g *GraphIngestor) mergeRelationship(ctx context.Context, tx neo4j.ManagedTransaction, path string, rel models.CodeRelationship) error {
	if rel.Source == "" || rel.Target == "" || rel.RelationshipType == "" {
		return nil
	}
	if strings.EqualFold(rel.RelationshipType, "imports") {
		// Handled by the import pass.
		return nil
	}
	relType := RelationshipType(rel.RelationshipType)
	if relType == "" {
		g.logger.Warn("skipping relationship with unusable type",
			"type", rel.RelationshipType, "source", rel.Source)
		return nil
	}

	query := fmt.Sprintf(`
		MATCH (s {name: $source, file_path: $path})
		MATCH (t {name: $target, file_path: $path})
		MERGE (s)-[r:%s]->(t)
		SET r.context = $context
	`, relType)

	_, err := tx.Run(ctx, query, map[string]any{
		"source":  rel.Source,
		"target":  rel.Target,
		"path":    path,
		"context": rel.Context,
	})
	if err != nil {
		return err
	}

	// Cross-file fallback: when the endpoints live in different files, merge
	// the edge between the same-named nodes and mark it.
	crossFile := fmt.Sprintf(`
		MATCH (s {name: $source}), (t {name: $target})
		WHERE s.file_path <> t.file_path
		MERGE (s)-[r:%s]->(t)
		SET r.context = $context, r.cross_file = true
	`, relType)

	_, err = tx.Run(ctx, crossFile, map[string]any{
		"source":  rel.Source,
		"target":  rel.Target,
		"context": rel.Context + " (cross-file relationship)",
	})
	return err
}
