package db

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// vectorIndexes lists the cosine indexes the retriever depends on, in the
// priority order their results are reported.
var vectorIndexes = []struct {
	Name  string
	Label string
}{
	{"operation_index", "Operation"},
	{"function_index", "Function"},
	{"file_index", "File"},
}

// EnsureVectorIndexes creates the three embedding indexes if they do not
// exist. An existing index with a different dimension is an error: silently
// recreating it would orphan every stored embedding, so the operator has to
// resolve the mismatch explicitly.
func (c *Neo4jClient) EnsureVectorIndexes(ctx context.Context, dimensions int) error {
	for _, idx := range vectorIndexes {
		existing, err := c.indexDimensions(ctx, idx.Name)
		if err != nil {
			return fmt.Errorf("failed to inspect index %s: %w", idx.Name, err)
		}
		if existing > 0 && existing != dimensions {
			return fmt.Errorf("index %s has dimension %d, embedding provider produces %d; drop the index or change the provider",
				idx.Name, existing, dimensions)
		}
		if existing > 0 {
			continue
		}

		query := fmt.Sprintf(`
			CREATE VECTOR INDEX %s IF NOT EXISTS
			FOR (n:%s) ON (n.embedding)
			OPTIONS {indexConfig: {
				`+"`vector.dimensions`"+`: $dimensions,
				`+"`vector.similarity_function`"+`: 'cosine'
			}}
		`, idx.Name, idx.Label)

		_, err = c.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, query, map[string]any{"dimensions": dimensions})
			return nil, err
		})
		if err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.Name, err)
		}
	}
	return nil
}

// indexDimensions returns the configured dimension of an existing vector
// index, or 0 when the index does not exist.
func (c *Neo4jClient) indexDimensions(ctx context.Context, name string) (int, error) {
	result, err := c.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, `
			SHOW VECTOR INDEXES YIELD name, options
			WHERE name = $name
			RETURN options
		`, map[string]any{"name": name})
		if err != nil {
			return 0, err
		}
		if !records.Next(ctx) {
			return 0, records.Err()
		}

		optionsRaw, _ := records.Record().Get("options")
		options, ok := optionsRaw.(map[string]any)
		if !ok {
			return 0, nil
		}
		indexConfig, ok := options["indexConfig"].(map[string]any)
		if !ok {
			return 0, nil
		}
		switch v := indexConfig["vector.dimensions"].(type) {
		case int64:
			return int(v), nil
		case float64:
			return int(v), nil
		}
		return 0, nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}
