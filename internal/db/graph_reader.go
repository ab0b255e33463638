package db

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphReader serves the read-only graph views behind the visualization
// endpoints.
type GraphReader struct {
	client *Neo4jClient
}

func NewGraphReader(client *Neo4jClient) *GraphReader {
	return &GraphReader{client: client}
}

type FileSummary struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Language    string `json:"language"`
	EntityCount int    `json:"entity_count"`
}

type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

type GraphNode struct {
	ID    string         `json:"id"`
	Label string         `json:"label"`
	Type  string         `json:"type"`
	Props map[string]any `json:"props"`
}

type GraphEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// ListFiles returns every indexed file with its entity count, optionally
// restricted to one repository.
func (r *GraphReader) ListFiles(ctx context.Context, repoID string) ([]FileSummary, error) {
	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (f:File)
			WHERE $repoId = '' OR f.repo_id = $repoId
			OPTIONAL MATCH (f)-[:CONTAINS]->(e)
			RETURN f.path AS path,
			       coalesce(f.name, f.path) AS name,
			       coalesce(f.language, '') AS language,
			       count(e) AS entityCount
			ORDER BY f.path
		`
		records, err := tx.Run(ctx, query, map[string]any{"repoId": repoID})
		if err != nil {
			return nil, err
		}

		files := []FileSummary{}
		for records.Next(ctx) {
			rec := records.Record()
			var file FileSummary
			if v, ok := rec.Get("path"); ok && v != nil {
				file.Path, _ = v.(string)
			}
			if v, ok := rec.Get("name"); ok && v != nil {
				file.Name, _ = v.(string)
			}
			if v, ok := rec.Get("language"); ok && v != nil {
				file.Language, _ = v.(string)
			}
			if v, ok := rec.Get("entityCount"); ok && v != nil {
				if c, ok := v.(int64); ok {
					file.EntityCount = int(c)
				}
			}
			files = append(files, file)
		}
		return files, records.Err()
	})

	if err != nil {
		return nil, err
	}
	return result.([]FileSummary), nil
}

// FileData returns one file's subgraph as nodes and edges for visualization:
// the file node, the entities it contains, and the typed relationships
// between those entities.
func (r *GraphReader) FileData(ctx context.Context, path string) (*GraphData, error) {
	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (f:File {path: $path})
			OPTIONAL MATCH (f)-[:CONTAINS]->(e)
			OPTIONAL MATCH (e)-[rel]->(other)
			WHERE other.file_path = $path OR (other:File AND other.path = $path)
			RETURN f, e, labels(e) AS entityLabels, type(rel) AS relType, other.name AS otherName
		`
		records, err := tx.Run(ctx, query, map[string]any{"path": path})
		if err != nil {
			return nil, err
		}

		nodesMap := make(map[string]GraphNode)
		edgesMap := make(map[string]GraphEdge)

		for records.Next(ctx) {
			rec := records.Record()

			if raw, ok := rec.Get("f"); ok && raw != nil {
				fileNode := raw.(neo4j.Node)
				props := fileNode.GetProperties()
				id := stringProp(props, "path")
				if _, exists := nodesMap[id]; !exists && id != "" {
					nodesMap[id] = GraphNode{
						ID:    id,
						Label: stringProp(props, "name"),
						Type:  "File",
						Props: map[string]any{
							"language": props["language"],
							"path":     props["path"],
						},
					}
				}
			}

			entityName := ""
			if raw, ok := rec.Get("e"); ok && raw != nil {
				entityNode := raw.(neo4j.Node)
				props := entityNode.GetProperties()
				entityName = stringProp(props, "name")

				if _, exists := nodesMap[entityName]; !exists && entityName != "" {
					nodeType := "Entity"
					if labelsRaw, ok := rec.Get("entityLabels"); ok && labelsRaw != nil {
						if labels, ok := labelsRaw.([]any); ok && len(labels) > 0 {
							if s, ok := labels[0].(string); ok {
								nodeType = s
							}
						}
					}
					nodesMap[entityName] = GraphNode{
						ID:    entityName,
						Label: entityName,
						Type:  nodeType,
						Props: map[string]any{
							"description":   props["description"],
							"original_name": props["original_name"],
							"line_number":   props["line_number"],
						},
					}

					edgeID := fmt.Sprintf("%s->%s", path, entityName)
					edgesMap[edgeID] = GraphEdge{
						ID:     edgeID,
						Source: path,
						Target: entityName,
						Type:   "CONTAINS",
					}
				}
			}

			relTypeRaw, _ := rec.Get("relType")
			otherNameRaw, _ := rec.Get("otherName")
			if relTypeRaw != nil && otherNameRaw != nil && entityName != "" {
				relType, _ := relTypeRaw.(string)
				otherName, _ := otherNameRaw.(string)
				if relType != "" && otherName != "" {
					edgeID := fmt.Sprintf("%s-%s->%s", entityName, relType, otherName)
					if _, exists := edgesMap[edgeID]; !exists {
						edgesMap[edgeID] = GraphEdge{
							ID:     edgeID,
							Source: entityName,
							Target: otherName,
							Type:   relType,
						}
					}
				}
			}
		}

		if err := records.Err(); err != nil {
			return nil, err
		}

		nodes := make([]GraphNode, 0, len(nodesMap))
		for _, node := range nodesMap {
			nodes = append(nodes, node)
		}
		edges := make([]GraphEdge, 0, len(edgesMap))
		for _, edge := range edgesMap {
			edges = append(edges, edge)
		}

		return &GraphData{Nodes: nodes, Edges: edges}, nil
	})

	if err != nil {
		return nil, err
	}
	return result.(*GraphData), nil
}

func stringProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
