package db

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"golang.org/x/sync/errgroup"

	"github.com/codeatlas/backend/internal/embedding"
	"github.com/codeatlas/backend/internal/metrics"
)

// NoContextSentinel is returned when no strategy produced anything. Callers
// pass it through to the model so the answer acknowledges the gap instead of
// inventing one.
const NoContextSentinel = "No specific context found in the graph."

const (
	vectorTopK           = 5
	vectorScoreThreshold = 0.6
	expansionLimit       = 20
	shortestPathLimit    = 3
	shortestPathMaxHops  = 3
	keywordResultLimit   = 5
	fileContextEntities  = 8

	fileVectorTopK      = 2
	fileVectorThreshold = 0.7
)

// Scope narrows a retrieval. Zero value means the whole graph.
type Scope struct {
	RepoID string
	// FilePath switches to single-file mode: only that file's subgraph is
	// consulted.
	FilePath string
	// ContextJSON, when set in single-file mode, is used as the context
	// verbatim instead of querying the graph.
	ContextJSON string
}

// Retriever answers "what context is relevant to this question" from the
// graph. It layers several strategies and reports their union; individual
// strategy failures are logged and skipped, so Retrieve itself never fails.
type Retriever struct {
	client   *Neo4jClient
	embedder embedding.Provider
	logger   *slog.Logger
}

func NewRetriever(client *Neo4jClient, embedder embedding.Provider, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{client: client, embedder: embedder, logger: logger}
}

type graphHit struct {
	Name        string
	Description string
	Kind        string
	FilePath    string
	Score       float64
}

var (
	operationsIntentRe = regexp.MustCompile(`(?i)what (?:operations|functions|can|does).*(?:in|with) (\w+\.[a-zA-Z]+)`)
	explainIntentRe    = regexp.MustCompile(`(?i)explain\s+([a-zA-Z0-9_\s]+?)\s*(?:operation|function|code)?\s+in\s+(\w+\.[a-zA-Z]+)`)
)

// Retrieve assembles graph context for a question. In single-file scope only
// that file's subgraph is consulted; otherwise the full pipeline runs:
// targeted intents, vector search over the three indexes, neighborhood
// expansion, shortest paths between the top hits, keyword fallback, and file
// context. Strategies after vector search run concurrently and are
// reassembled in priority order; a caller deadline returns whatever has been
// assembled by then.
func (r *Retriever) Retrieve(ctx context.Context, question string, scope Scope) string {
	if scope.FilePath != "" {
		return r.retrieveFileContext(ctx, question, scope)
	}

	if section := r.targetedIntent(ctx, question); section != "" {
		return section
	}

	hits := r.vectorSearch(ctx, question, scope.RepoID)

	// Strategy slots, priority order. Slot 0 is vector search; the rest are
	// filled concurrently.
	sections := make([]string, 5)
	sections[0] = formatVectorSection(hits)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sections[1] = r.expandNeighborhood(gctx, hits)
		return nil
	})
	g.Go(func() error {
		sections[2] = r.shortestPaths(gctx, hits)
		return nil
	})
	g.Go(func() error {
		sections[3] = r.keywordSearch(gctx, question)
		return nil
	})
	g.Go(func() error {
		sections[4] = r.fileContext(gctx, hits)
		return nil
	})
	if err := g.Wait(); err != nil {
		r.logger.Warn("retrieval fan-out interrupted", "error", err)
	}

	var parts []string
	for _, s := range sections {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return NoContextSentinel
	}
	return strings.Join(parts, "\n\n")
}

// targetedIntent answers the two question shapes that map directly onto the
// operation lookup. Empty string means no intent matched or the lookup was
// empty, and the general pipeline should run.
func (r *Retriever) targetedIntent(ctx context.Context, question string) string {
	if m := operationsIntentRe.FindStringSubmatch(question); m != nil {
		ops := r.fileOperations(ctx, m[1], "")
		if len(ops) > 0 {
			var b strings.Builder
			fmt.Fprintf(&b, "Operations in %s:\n", m[1])
			for _, op := range ops {
				fmt.Fprintf(&b, "- %s: %s\n", op.Name, op.Description)
			}
			return b.String()
		}
	}

	if m := explainIntentRe.FindStringSubmatch(question); m != nil {
		subject := strings.TrimSpace(m[1])
		ops := r.fileOperations(ctx, m[2], subject)
		if len(ops) > 0 {
			var b strings.Builder
			fmt.Fprintf(&b, "Details for %s in %s:\n", subject, m[2])
			for _, op := range ops {
				fmt.Fprintf(&b, "- %s: %s\n", op.Name, op.Description)
			}
			return b.String()
		}
	}
	return ""
}

// fileOperations looks up operation entities of a file by filename, optionally
// filtered by a name fragment.
func (r *Retriever) fileOperations(ctx context.Context, filename, nameFilter string) []graphHit {
	query := `
		MATCH (f:File)-[:CONTAINS|CONTAINS_OPERATION]->(o)
		WHERE (f.name = $filename OR f.path ENDS WITH $suffix)
		  AND (o:Operation OR o:Function)
		  AND ($filter = '' OR toLower(o.name) CONTAINS toLower($filter))
		RETURN o.name AS name, coalesce(o.description, '') AS description
		ORDER BY o.name
	`
	records, err := r.readHits(ctx, query, map[string]any{
		"filename": filename,
		"suffix":   "/" + filename,
		"filter":   nameFilter,
	})
	if err != nil {
		r.logger.Warn("operation lookup failed", "file", filename, "error", err)
		return nil
	}
	return records
}

// vectorSearch embeds the question and queries the three indexes. Hits are
// reported operations first, then functions, then files, score-descending
// within each group.
func (r *Retriever) vectorSearch(ctx context.Context, question, repoID string) []graphHit {
	if r.embedder == nil {
		return nil
	}
	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		r.logger.Warn("question embedding failed", "error", err)
		return nil
	}

	var all []graphHit
	for _, idx := range vectorIndexes {
		query := `
			CALL db.index.vector.queryNodes($index, $k, $embedding)
			YIELD node, score
			WHERE score > $threshold
			  AND ($repoId = '' OR node.repo_id = $repoId)
			RETURN node.name AS name,
			       coalesce(node.description, '') AS description,
			       coalesce(node.file_path, node.path, '') AS file_path,
			       score
			ORDER BY score DESC
		`
		result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			records, err := tx.Run(ctx, query, map[string]any{
				"index":     idx.Name,
				"k":         vectorTopK,
				"embedding": vector,
				"threshold": vectorScoreThreshold,
				"repoId":    repoID,
			})
			if err != nil {
				return nil, err
			}
			var hits []graphHit
			for records.Next(ctx) {
				rec := records.Record()
				hit := graphHit{Kind: strings.ToLower(idx.Label)}
				if v, ok := rec.Get("name"); ok && v != nil {
					hit.Name, _ = v.(string)
				}
				if v, ok := rec.Get("description"); ok && v != nil {
					hit.Description, _ = v.(string)
				}
				if v, ok := rec.Get("file_path"); ok && v != nil {
					hit.FilePath, _ = v.(string)
				}
				if v, ok := rec.Get("score"); ok {
					if f, ok := v.(float64); ok {
						hit.Score = f
					}
				}
				hits = append(hits, hit)
			}
			return hits, records.Err()
		})
		if err != nil {
			r.logger.Warn("vector search failed", "index", idx.Name, "error", err)
			metrics.Get().RetrievalFailures.WithLabelValues("vector").Inc()
			continue
		}
		all = append(all, result.([]graphHit)...)
	}
	return all
}

func formatVectorSection(hits []graphHit) string {
	if len(hits) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant code elements:\n")
	for _, hit := range hits {
		fmt.Fprintf(&b, "- [%s] %s (%s): %s\n", hit.Kind, hit.Name, hit.FilePath, hit.Description)
	}
	return b.String()
}

// expandNeighborhood walks 1-2 hops from the strongest hits along the
// whitelisted relationship types.
func (r *Retriever) expandNeighborhood(ctx context.Context, hits []graphHit) string {
	if len(hits) == 0 {
		return ""
	}

	seen := map[string]bool{}
	var lines []string
	for _, hit := range hits {
		if len(lines) >= expansionLimit {
			break
		}
		query := `
			MATCH (start {name: $name})
			WHERE $filePath = '' OR start.file_path = $filePath OR start.path = $filePath
			MATCH (start)-[:` + TraversalRelTypes + `*1..2]-(node)
			WHERE node.name IS NOT NULL AND node.name <> $name
			RETURN DISTINCT node.name AS name, coalesce(node.description, '') AS description
			LIMIT $limit
		`
		neighbors, err := r.readHits(ctx, query, map[string]any{
			"name":     hit.Name,
			"filePath": hit.FilePath,
			"limit":    expansionLimit,
		})
		if err != nil {
			r.logger.Warn("neighborhood expansion failed", "entity", hit.Name, "error", err)
			metrics.Get().RetrievalFailures.WithLabelValues("expansion").Inc()
			continue
		}
		for _, n := range neighbors {
			if seen[n.Name] || len(lines) >= expansionLimit {
				continue
			}
			seen[n.Name] = true
			lines = append(lines, fmt.Sprintf("- %s: %s", n.Name, n.Description))
		}
	}

	if len(lines) == 0 {
		return ""
	}
	return "Related elements (1-2 hops):\n" + strings.Join(lines, "\n")
}

// shortestPaths reports up to three short paths between the top two hits.
func (r *Retriever) shortestPaths(ctx context.Context, hits []graphHit) string {
	if len(hits) < 2 || hits[0].Name == hits[1].Name {
		return ""
	}

	query := fmt.Sprintf(`
		MATCH (a {name: $nameA}), (b {name: $nameB})
		MATCH p = allShortestPaths((a)-[*..%d]-(b))
		RETURN [n IN nodes(p) | coalesce(n.name, n.path, '')] AS names
		LIMIT %d
	`, shortestPathMaxHops, shortestPathLimit)

	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, query, map[string]any{
			"nameA": hits[0].Name,
			"nameB": hits[1].Name,
		})
		if err != nil {
			return nil, err
		}
		var paths []string
		for records.Next(ctx) {
			namesRaw, _ := records.Record().Get("names")
			names, ok := namesRaw.([]any)
			if !ok {
				continue
			}
			steps := make([]string, 0, len(names))
			for _, n := range names {
				if s, ok := n.(string); ok && s != "" {
					steps = append(steps, s)
				}
			}
			if len(steps) > 1 {
				paths = append(paths, strings.Join(steps, " -> "))
			}
		}
		return paths, records.Err()
	})
	if err != nil {
		r.logger.Warn("shortest path search failed",
			"from", hits[0].Name, "to", hits[1].Name, "error", err)
		metrics.Get().RetrievalFailures.WithLabelValues("paths").Inc()
		return ""
	}

	paths := result.([]string)
	if len(paths) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Connections between %s and %s:\n", hits[0].Name, hits[1].Name)
	for _, p := range paths {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	return b.String()
}

var keywordStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "what": true,
	"how": true, "why": true, "where": true, "when": true, "who": true,
	"which": true,
}

var keywordSplitRe = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// keywordTokens lower-cases the question and drops stopwords and tokens of
// two characters or fewer.
func keywordTokens(question string) []string {
	var tokens []string
	for _, raw := range keywordSplitRe.Split(strings.ToLower(question), -1) {
		if len(raw) <= 2 || keywordStopwords[raw] {
			continue
		}
		tokens = append(tokens, raw)
	}
	return tokens
}

// keywordSearch is the last-resort lexical match on entity names and
// descriptions.
func (r *Retriever) keywordSearch(ctx context.Context, question string) string {
	keywords := keywordTokens(question)
	if len(keywords) == 0 {
		return ""
	}

	var lines []string
	seen := map[string]bool{}

	byName := `
		MATCH (n)
		WHERE n.name IS NOT NULL
		  AND any(kw IN $keywords WHERE toLower(n.name) CONTAINS kw)
		RETURN n.name AS name, coalesce(n.description, '') AS description
		LIMIT $limit
	`
	byDescription := `
		MATCH (n)
		WHERE n.name IS NOT NULL AND n.description IS NOT NULL
		  AND any(kw IN $keywords WHERE toLower(n.description) CONTAINS kw)
		RETURN n.name AS name, n.description AS description
		LIMIT $limit
	`
	for _, query := range []string{byName, byDescription} {
		hits, err := r.readHits(ctx, query, map[string]any{
			"keywords": keywords,
			"limit":    keywordResultLimit,
		})
		if err != nil {
			r.logger.Warn("keyword search failed", "error", err)
			metrics.Get().RetrievalFailures.WithLabelValues("keyword").Inc()
			continue
		}
		for _, hit := range hits {
			if seen[hit.Name] {
				continue
			}
			seen[hit.Name] = true
			lines = append(lines, fmt.Sprintf("- %s: %s", hit.Name, hit.Description))
		}
	}

	if len(lines) == 0 {
		return ""
	}
	return "Keyword matches:\n" + strings.Join(lines, "\n")
}

// hitFilePaths returns the distinct non-empty file paths of hits, strongest
// first.
func hitFilePaths(hits []graphHit) []string {
	seen := map[string]bool{}
	var paths []string
	for _, hit := range hits {
		if hit.FilePath == "" || seen[hit.FilePath] {
			continue
		}
		seen[hit.FilePath] = true
		paths = append(paths, hit.FilePath)
	}
	return paths
}

// fileContext summarizes every file touched by a hit: one line per file plus
// a handful of its entities.
func (r *Retriever) fileContext(ctx context.Context, hits []graphHit) string {
	paths := hitFilePaths(hits)
	if len(paths) == 0 {
		return ""
	}

	var blocks []string
	for _, path := range paths {
		if block := r.fileSummary(ctx, path); block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n")
}

// fileSummary is one file's context block: the file line and up to a handful
// of contained entities.
func (r *Retriever) fileSummary(ctx context.Context, path string) string {
	query := fmt.Sprintf(`
		MATCH (f:File {path: $path})
		OPTIONAL MATCH (f)-[:CONTAINS]->(e)
		WITH f, e ORDER BY e.name
		RETURN f.name AS name,
		       coalesce(f.language, '') AS language,
		       collect({name: e.name, description: coalesce(e.description, '')})[..%d] AS entities
	`, fileContextEntities)

	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, query, map[string]any{"path": path})
		if err != nil {
			return nil, err
		}
		if !records.Next(ctx) {
			return "", records.Err()
		}
		rec := records.Record()

		var b strings.Builder
		name, _ := rec.Get("name")
		language, _ := rec.Get("language")
		fmt.Fprintf(&b, "File %v (%v, %s):\n", name, language, path)

		entitiesRaw, _ := rec.Get("entities")
		if list, ok := entitiesRaw.([]any); ok {
			for _, item := range list {
				m, ok := item.(map[string]any)
				if !ok || m["name"] == nil {
					continue
				}
				fmt.Fprintf(&b, "- %v: %v\n", m["name"], m["description"])
			}
		}
		return b.String(), records.Err()
	})
	if err != nil {
		r.logger.Warn("file context lookup failed", "path", path, "error", err)
		return ""
	}
	return result.(string)
}

// retrieveFileContext is single-file mode: a pre-supplied context blob wins,
// otherwise the file's subgraph is summarized and the entities most similar
// to the question are appended.
func (r *Retriever) retrieveFileContext(ctx context.Context, question string, scope Scope) string {
	if scope.ContextJSON != "" {
		return "File context:\n" + scope.ContextJSON
	}

	query := `
		MATCH (f:File {path: $path})
		WHERE $repoId = '' OR f.repo_id = $repoId
		OPTIONAL MATCH (f)-[:CONTAINS]->(e)
		OPTIONAL MATCH (e)-[rel]->(other)
		WHERE other.file_path = $path
		RETURN f.name AS fileName,
		       collect(DISTINCT {name: e.name, description: coalesce(e.description, '')}) AS entities,
		       collect(DISTINCT {source: e.name, type: type(rel), target: other.name}) AS relationships
	`
	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, query, map[string]any{
			"path":   scope.FilePath,
			"repoId": scope.RepoID,
		})
		if err != nil {
			return nil, err
		}
		if !records.Next(ctx) {
			return "", records.Err()
		}
		rec := records.Record()

		var b strings.Builder
		fileName, _ := rec.Get("fileName")
		fmt.Fprintf(&b, "File %v (%s):\n", fileName, scope.FilePath)

		if entitiesRaw, ok := rec.Get("entities"); ok {
			if list, ok := entitiesRaw.([]any); ok {
				for _, item := range list {
					m, ok := item.(map[string]any)
					if !ok || m["name"] == nil {
						continue
					}
					fmt.Fprintf(&b, "- %v: %v\n", m["name"], m["description"])
				}
			}
		}
		if relsRaw, ok := rec.Get("relationships"); ok {
			if list, ok := relsRaw.([]any); ok {
				var relLines []string
				for _, item := range list {
					m, ok := item.(map[string]any)
					if !ok || m["source"] == nil || m["target"] == nil {
						continue
					}
					relLines = append(relLines, fmt.Sprintf("- %v %v %v", m["source"], m["type"], m["target"]))
				}
				if len(relLines) > 0 {
					b.WriteString("Relationships:\n")
					b.WriteString(strings.Join(relLines, "\n"))
					b.WriteString("\n")
				}
			}
		}
		return b.String(), records.Err()
	})
	if err != nil {
		r.logger.Warn("file retrieval failed", "path", scope.FilePath, "error", err)
		return NoContextSentinel
	}
	text := result.(string)
	if section := r.fileVectorMatches(ctx, question, scope); section != "" {
		text += "\n" + section
	}
	if text == "" {
		return NoContextSentinel
	}
	return text
}

// fileVectorMatches surfaces the file's entities most similar to the
// question. Scores come from cosine similarity against the stored embeddings,
// restricted to the file's own subgraph.
func (r *Retriever) fileVectorMatches(ctx context.Context, question string, scope Scope) string {
	if r.embedder == nil {
		return ""
	}
	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		r.logger.Warn("question embedding failed", "error", err)
		return ""
	}

	query := `
		MATCH (f:File {path: $path})-[:CONTAINS]->(e)
		WHERE ($repoId = '' OR f.repo_id = $repoId)
		  AND e.embedding IS NOT NULL
		WITH e, vector.similarity.cosine(e.embedding, $embedding) AS score
		WHERE score > $threshold
		RETURN e.name AS name, coalesce(e.description, '') AS description
		ORDER BY score DESC
		LIMIT $limit
	`
	hits, err := r.readHits(ctx, query, map[string]any{
		"path":      scope.FilePath,
		"repoId":    scope.RepoID,
		"embedding": vector,
		"threshold": fileVectorThreshold,
		"limit":     fileVectorTopK,
	})
	if err != nil {
		r.logger.Warn("file vector search failed", "path", scope.FilePath, "error", err)
		metrics.Get().RetrievalFailures.WithLabelValues("file_vector").Inc()
		return ""
	}
	return formatRelevantSection(hits)
}

func formatRelevantSection(hits []graphHit) string {
	if len(hits) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Most relevant to the question:\n")
	for _, hit := range hits {
		fmt.Fprintf(&b, "- %s: %s\n", hit.Name, hit.Description)
	}
	return b.String()
}

// readHits runs a query returning name/description columns.
func (r *Retriever) readHits(ctx context.Context, query string, params map[string]any) ([]graphHit, error) {
	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		var hits []graphHit
		for records.Next(ctx) {
			rec := records.Record()
			var hit graphHit
			if v, ok := rec.Get("name"); ok && v != nil {
				hit.Name, _ = v.(string)
			}
			if v, ok := rec.Get("description"); ok && v != nil {
				hit.Description, _ = v.(string)
			}
			hits = append(hits, hit)
		}
		return hits, records.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]graphHit), nil
}
