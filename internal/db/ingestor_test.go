package db

import (
	"context"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas/backend/internal/embedding"
	"github.com/codeatlas/backend/internal/models"
)

func authParsedFile(repoID string) *models.ParsedFile {
	return &models.ParsedFile{
		RepoID:       repoID,
		Filename:     "auth.py",
		OriginalPath: "src/auth.py",
		Language:     "python",
		Entities: []models.CodeEntity{
			{Name: "auth.py", EntityType: "source_file", FilePath: "src/auth.py", Description: "Source file"},
			{Name: "login-auth", EntityType: "function", FilePath: "src/auth.py", Description: "Validates credentials",
				Properties: models.Properties{"original_name": "login", "line_number": 4}},
			{Name: "check-auth", EntityType: "function", FilePath: "src/auth.py", Description: "Hashes and compares",
				Properties: models.Properties{"original_name": "check", "line_number": 11}},
			{Name: "os", EntityType: "import", FilePath: "src/auth.py", Description: "Import os",
				Properties: models.Properties{"is_standard_library": true}},
		},
		Relationships: []models.CodeRelationship{
			{Source: "auth.py", Target: "login-auth", RelationshipType: "defines"},
			{Source: "auth.py", Target: "check-auth", RelationshipType: "defines"},
			{Source: "login-auth", Target: "check-auth", RelationshipType: "calls"},
			{Source: "auth.py", Target: "os", RelationshipType: "imports"},
		},
	}
}

// countGraph returns the node and edge counts reachable from the repository's
// own nodes, so placeholder targets without a repo_id are still counted once.
func countGraph(t *testing.T, ctx context.Context, client *Neo4jClient, repoID string) (int64, int64) {
	t.Helper()

	result, err := client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, `
			OPTIONAL MATCH (n {repo_id: $repoId})
			WITH count(n) AS nodes
			OPTIONAL MATCH (a {repo_id: $repoId})-[r]->()
			RETURN nodes, count(r) AS edges
		`, map[string]any{"repoId": repoID})
		if err != nil {
			return nil, err
		}
		require.True(t, records.Next(ctx))
		rec := records.Record()
		nodes, _ := rec.Get("nodes")
		edges, _ := rec.Get("edges")
		return [2]int64{nodes.(int64), edges.(int64)}, records.Err()
	})
	require.NoError(t, err)
	counts := result.([2]int64)
	return counts[0], counts[1]
}

func TestGraphIngestor_IngestIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	client := setupTestNeo4j(t)
	defer client.Close()

	repoID := "test-ingest-idempotent"
	defer cleanupTestGraph(t, ctx, client, repoID)

	ingestor := NewGraphIngestor(client, embedding.NewMockProvider(8), nil)
	parsed := authParsedFile(repoID)

	written, err := ingestor.Ingest(ctx, parsed)
	require.NoError(t, err)
	assert.Equal(t, 4, written)

	nodes, edges := countGraph(t, ctx, client, repoID)
	assert.Positive(t, nodes)
	assert.Positive(t, edges)

	// A second pass must merge onto the same nodes and edges.
	_, err = ingestor.Ingest(ctx, parsed)
	require.NoError(t, err)

	nodesAfter, edgesAfter := countGraph(t, ctx, client, repoID)
	assert.Equal(t, nodes, nodesAfter)
	assert.Equal(t, edges, edgesAfter)

	result, err := client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, `
			MATCH (e:Function {name: 'login-auth', file_path: 'src/auth.py'})
			RETURN count(e) AS c
		`, nil)
		if err != nil {
			return nil, err
		}
		require.True(t, records.Next(ctx))
		c, _ := records.Record().Get("c")
		return c, records.Err()
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result)
}

func TestGraphIngestor_ImportPlaceholder(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	client := setupTestNeo4j(t)
	defer client.Close()

	repoID := "test-ingest-placeholder"
	defer cleanupTestGraph(t, ctx, client, repoID)
	defer func() {
		_, _ = client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, `MATCH (t:StandardLibrary {name: 'stdio.h'}) DETACH DELETE t`, nil)
			return nil, err
		})
	}()

	ingestor := NewGraphIngestor(client, embedding.NewMockProvider(8), nil)

	parsed := &models.ParsedFile{
		RepoID:       repoID,
		Filename:     "main.c",
		OriginalPath: "src/main.c",
		Language:     "c",
		Entities: []models.CodeEntity{
			{Name: "stdio.h", EntityType: "import", FilePath: "src/main.c", Description: "Import stdio.h",
				Properties: models.Properties{"is_standard_library": true}},
		},
	}

	_, err := ingestor.Ingest(ctx, parsed)
	require.NoError(t, err)

	result, err := client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, `
			MATCH (f:File {path: 'src/main.c'})-[:IMPORTS]->(t:StandardLibrary {name: 'stdio.h'})
			RETURN t.is_placeholder AS placeholder
		`, nil)
		if err != nil {
			return nil, err
		}
		require.True(t, records.Next(ctx))
		placeholder, _ := records.Record().Get("placeholder")
		return placeholder, records.Err()
	})
	require.NoError(t, err)
	assert.Equal(t, true, result)
}

func TestGraphIngestor_CrossFileRelationship(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	client := setupTestNeo4j(t)
	defer client.Close()

	repoID := "test-ingest-crossfile"
	defer cleanupTestGraph(t, ctx, client, repoID)

	ingestor := NewGraphIngestor(client, embedding.NewMockProvider(8), nil)

	helpers := &models.ParsedFile{
		RepoID:       repoID,
		Filename:     "helpers.py",
		OriginalPath: "src/helpers.py",
		Language:     "python",
		Entities: []models.CodeEntity{
			{Name: "hash_password-helpers", EntityType: "function", FilePath: "src/helpers.py",
				Description: "Hashes a password"},
		},
	}
	mainFile := &models.ParsedFile{
		RepoID:       repoID,
		Filename:     "main.py",
		OriginalPath: "src/main.py",
		Language:     "python",
		Entities: []models.CodeEntity{
			{Name: "login-main", EntityType: "function", FilePath: "src/main.py",
				Description: "Logs a user in"},
		},
		Relationships: []models.CodeRelationship{
			{Source: "login-main", Target: "hash_password-helpers", RelationshipType: "calls",
				Context: "login calls hash_password"},
		},
	}

	_, err := ingestor.Ingest(ctx, helpers)
	require.NoError(t, err)
	_, err = ingestor.Ingest(ctx, mainFile)
	require.NoError(t, err)

	result, err := client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, `
			MATCH (s {name: 'login-main', file_path: 'src/main.py'})
			      -[r:CALLS]->
			      (t {name: 'hash_password-helpers', file_path: 'src/helpers.py'})
			RETURN r.cross_file AS crossFile
		`, nil)
		if err != nil {
			return nil, err
		}
		require.True(t, records.Next(ctx))
		crossFile, _ := records.Record().Get("crossFile")
		return crossFile, records.Err()
	})
	require.NoError(t, err)
	assert.Equal(t, true, result)
}

func TestGraphIngestor_SkipsMissingFilename(t *testing.T) {
	ingestor := NewGraphIngestor(nil, nil, nil)

	written, err := ingestor.Ingest(context.Background(), &models.ParsedFile{RepoID: "r1"})
	require.NoError(t, err)
	assert.Zero(t, written)
}
