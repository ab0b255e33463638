package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codeatlas/backend/internal/llm"
	"github.com/codeatlas/backend/internal/models"
)

// maxPromptContent bounds how much of a file is sent to the model, to respect
// its context window.
const maxPromptContent = 8000

// maxExtractionTokens bounds the model's JSON output so a runaway response
// cannot stall a pipeline worker.
const maxExtractionTokens = 4096

// AIExtractor asks a generative model for entities and relationships. It is
// the primary extraction path; every failure mode (transport error, quota,
// malformed JSON) degrades to an empty result, which the orchestrator treats
// as the signal to fall back to the regex path.
type AIExtractor struct {
	client llm.Client
	logger *slog.Logger
}

func NewAIExtractor(client llm.Client, logger *slog.Logger) *AIExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &AIExtractor{client: client, logger: logger}
}

type aiResponse struct {
	Entities      []map[string]any `json:"entities"`
	Relationships []struct {
		Source           string `json:"source"`
		Target           string `json:"target"`
		RelationshipType string `json:"relationship_type"`
		Context          string `json:"context"`
	} `json:"relationships"`
}

// Extract returns (nil, nil) on any failure; it never returns an error
// because model failures must not fail the file.
func (e *AIExtractor) Extract(ctx context.Context, content, language, filePath string) ([]models.CodeEntity, []models.CodeRelationship) {
	if e.client == nil {
		return nil, nil
	}

	prompt := buildExtractionPrompt(content, language)

	raw, err := e.client.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: llm.Float32(0.2),
		MaxTokens:   llm.Int(maxExtractionTokens),
	})
	if err != nil {
		e.logger.Warn("model extraction failed, will fall back to regex",
			"file", filePath, "error", err)
		return nil, nil
	}

	parsed, err := parseModelResponse(raw)
	if err != nil {
		e.logger.Warn("unparseable model response, will fall back to regex",
			"file", filePath, "error", err)
		return nil, nil
	}

	var entities []models.CodeEntity
	for _, raw := range parsed.Entities {
		entity, ok := entityFromModel(raw, filePath)
		if !ok {
			continue
		}
		entities = append(entities, entity)
	}

	var relationships []models.CodeRelationship
	for _, rel := range parsed.Relationships {
		relationships = append(relationships, models.CodeRelationship{
			Source:           rel.Source,
			Target:           rel.Target,
			RelationshipType: rel.RelationshipType,
			Context:          rel.Context,
		})
	}

	return entities, relationships
}

// parseModelResponse extracts the JSON object span from the raw model output.
// Models often wrap the object in commentary or code fences, so only the text
// between the first '{' and the last '}' is parsed.
func parseModelResponse(raw string) (*aiResponse, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var parsed aiResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON in model output: %w", err)
	}
	return &parsed, nil
}

// entityFromModel converts one raw entity object. Required fields are name,
// entity_type and description; any extra top-level keys the model produced
// are folded into properties for forward compatibility.
func entityFromModel(raw map[string]any, filePath string) (models.CodeEntity, bool) {
	name, _ := raw["name"].(string)
	entityType, _ := raw["entity_type"].(string)
	if name == "" || entityType == "" {
		return models.CodeEntity{}, false
	}
	description, _ := raw["description"].(string)

	properties := models.Properties{}
	if props, ok := raw["properties"].(map[string]any); ok {
		for k, v := range props {
			properties[k] = v
		}
	}
	for key, value := range raw {
		switch key {
		case "name", "entity_type", "description", "properties":
		default:
			if value != nil {
				properties[key] = value
			}
		}
	}

	return models.CodeEntity{
		Name:        name,
		EntityType:  entityType,
		FilePath:    filePath,
		Description: description,
		Properties:  properties,
	}, true
}

func buildExtractionPrompt(content, language string) string {
	if len(content) > maxPromptContent {
		content = content[:maxPromptContent]
	}

	return fmt.Sprintf(`Analyze this %s code and extract detailed information in a structured format.

ANALYSIS TASKS:
1. Functions/methods: identify name, parameters, return types, visibility, and purpose
2. Classes/interfaces: identify name, fields, methods, parent classes/interfaces, and purpose
3. Variables/constants: identify name, data type, scope, and purpose
4. Control flow: identify loops, conditionals, error handling, and their relationships
5. Dependencies: identify external imports, includes, or library usage
6. Relationships: identify calls, inheritance, usage, containment between components

ENTITY TYPES (assign each entity exactly one):
function, variable, struct, module, class, database_table, external_api,
business_rule, loop, branch, input_operation, output_operation, user_input,
job, import, constant, interface, paragraph, enum, define

RELATIONSHIP TYPES:
calls, defines, declares, uses, assigns, depends_on, reads_from, writes_to,
interacts_with, returns, composes, contains, executes, satisfies,
triggered_by, controls_flow_to, spawns, includes, imports, inherits,
logs_to, allocates, deallocates

CODE TO ANALYZE:
`+"```"+`
%s
`+"```"+`

REQUIRED OUTPUT FORMAT:
Return only a JSON object with these exact keys:
{
  "entities": [
    {"name": "...", "entity_type": "...", "description": "...", "properties": {"params": ["a:int"], "return_type": "...", "visibility": "...", "data_type": "...", "parent_class": "...", "line_number": 1}}
  ],
  "relationships": [
    {"source": "...", "target": "...", "relationship_type": "...", "context": "..."}
  ]
}

Every entity must have a name, entity_type, and description field. Ensure the JSON is correctly formatted.`, language, content)
}
