package models

import (
	"encoding/json"
	"regexp"
)

// CodeEntity is one structural unit discovered in a source file: a function,
// variable, class, import, business rule, or the synthetic source_file entity
// that represents the file itself.
type CodeEntity struct {
	Name        string     `json:"name"`
	EntityType  string     `json:"entity_type"`
	FilePath    string     `json:"file_path"`
	Description string     `json:"description,omitempty"`
	Properties  Properties `json:"properties,omitempty"`
}

// CodeRelationship is a directed, typed edge between two entities. Source and
// target are entity names; the target may reference an entity outside this
// file (e.g. an unresolved import).
type CodeRelationship struct {
	Source           string `json:"source"`
	Target           string `json:"target"`
	RelationshipType string `json:"relationship_type"`
	Context          string `json:"context,omitempty"`
}

// ParsedFile is the parse output for one file, and the unit of ingestion.
type ParsedFile struct {
	RepoID        string             `json:"repo_id"`
	Filename      string             `json:"filename"`
	OriginalPath  string             `json:"original_path,omitempty"`
	Language      string             `json:"language,omitempty"`
	Entities      []CodeEntity       `json:"entities"`
	Relationships []CodeRelationship `json:"relationships"`
}

// Properties is the open key/value bag attached to an entity. Values may come
// from the generative model, so keys are validated against an identifier
// pattern before being persisted and non-scalar values are stored as JSON.
type Properties map[string]any

var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s is safe to use as a property key or as an
// interpolated graph label.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// Sanitized returns a copy keeping only non-nil values under identifier-shaped
// keys. Slice and map values are flattened to their JSON form so they can be
// stored as node properties.
func (p Properties) Sanitized() map[string]any {
	out := make(map[string]any, len(p))
	for key, value := range p {
		if value == nil || !ValidIdentifier(key) {
			continue
		}
		switch value.(type) {
		case string, bool, int, int64, float64, float32:
			out[key] = value
		default:
			raw, err := json.Marshal(value)
			if err != nil {
				continue
			}
			out[key] = string(raw)
		}
	}
	return out
}

// GetString returns the property value as a string if present.
func (p Properties) GetString(key string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
