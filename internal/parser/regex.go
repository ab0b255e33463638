package parser

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/codeatlas/backend/internal/models"
)

// ExtractWithRegex pulls entities and relationships out of raw source text
// using the per-language pattern tables. It is the guaranteed fallback path:
// it never fails, and for unrecognizable input it still returns the synthetic
// source_file entity so downstream containment edges have a target.
func ExtractWithRegex(content, language, filePath string) ([]models.CodeEntity, []models.CodeRelationship) {
	var entities []models.CodeEntity
	var relationships []models.CodeRelationship

	filename := filepath.Base(filePath)
	filenameBase := strings.TrimSuffix(filename, filepath.Ext(filename))

	entities = append(entities, models.CodeEntity{
		Name:        filename,
		EntityType:  "source_file",
		FilePath:    filePath,
		Description: fmt.Sprintf("Source file %s", filePath),
		Properties: models.Properties{
			"path":       filePath,
			"language":   language,
			"line_count": strings.Count(content, "\n") + 1,
		},
	})

	for _, pat := range patternsFor(language) {
		for _, match := range pat.re.FindAllStringSubmatchIndex(content, -1) {
			if len(match) < 4 || match[2] < 0 {
				continue
			}
			name := content[match[2]:match[3]]

			// Noise filter: single non-alphanumeric captures are artifacts
			// of over-broad patterns, not identifiers.
			if len(name) <= 1 && !isAlphanumeric(name) {
				continue
			}

			lineStart := strings.Count(content[:match[0]], "\n") + 1
			lineEnd := lineStart + strings.Count(content[match[0]:match[1]], "\n") + 1

			if importEntityTypes[pat.entityType] {
				matched := content[match[0]:match[1]]
				entities = append(entities, models.CodeEntity{
					// Imports keep their literal target name: the name is how
					// ingestion resolves them across files.
					Name:        name,
					EntityType:  "import",
					FilePath:    filePath,
					Description: fmt.Sprintf("Import %s in %s", name, filename),
					Properties: models.Properties{
						"line_number":         lineStart,
						"include_syntax":      strings.TrimSpace(matched),
						"is_standard_library": isStandardLibrary(language, name, matched),
						"source_file":         filename,
					},
				})
				relationships = append(relationships, models.CodeRelationship{
					Source:           filename,
					Target:           name,
					RelationshipType: "imports",
					Context:          fmt.Sprintf("%s imports %s", filename, name),
				})
				continue
			}

			contextStart := max(0, match[0]-100)
			contextEnd := min(len(content), match[1]+100)
			contextSample := content[contextStart:contextEnd]
			if len(contextSample) > 200 {
				contextSample = contextSample[:200]
			}

			uniqueName := name + "-" + filenameBase
			entities = append(entities, models.CodeEntity{
				Name:        uniqueName,
				EntityType:  pat.entityType,
				FilePath:    filePath,
				Description: fmt.Sprintf("%s '%s' in %s", capitalize(pat.entityType), name, filename),
				Properties: models.Properties{
					"original_name":  name,
					"line_number":    lineStart,
					"code_length":    lineEnd - lineStart,
					"context_sample": contextSample,
					"source_file":    filename,
				},
			})
			relationships = append(relationships, models.CodeRelationship{
				Source:           filename,
				Target:           uniqueName,
				RelationshipType: "defines",
				Context:          fmt.Sprintf("File %s defines %s %s", filename, pat.entityType, name),
			})
		}
	}

	relationships = append(relationships, inferRelationships(content, language, filename, entities)...)

	return entities, relationships
}

// inferRelationships runs the second extraction pass: calls, variable uses,
// and inheritance between entities of the same file. Cross-file linking is
// deliberately out of scope here; it happens at ingestion via import
// resolution, which avoids false positives from short names colliding across
// unrelated files.
func inferRelationships(content, language, filename string, entities []models.CodeEntity) []models.CodeRelationship {
	if len(entities) <= 1 {
		return nil
	}

	var rels []models.CodeRelationship

	for i, entity := range entities {
		if entity.EntityType == "source_file" || entity.EntityType == "import" {
			continue
		}

		switch entity.EntityType {
		case "function", "method", "paragraph", "arrow_function":
			originalName := originalNameOf(entity)

			for j, other := range entities {
				if i == j {
					continue
				}
				if other.Properties.GetString("source_file") != entity.Properties.GetString("source_file") {
					continue
				}
				otherOriginal := originalNameOf(other)

				switch other.EntityType {
				case "function", "method", "paragraph", "arrow_function":
					callPattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(otherOriginal) + `\s*\(`)
					if callPattern.MatchString(content) {
						rels = append(rels, models.CodeRelationship{
							Source:           entity.Name,
							Target:           other.Name,
							RelationshipType: "calls",
							Context:          fmt.Sprintf("Function %s calls %s in %s", originalName, otherOriginal, filename),
						})
					}
				case "variable", "constant":
					body, ok := functionBody(content, originalName)
					if !ok {
						continue
					}
					usePattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(otherOriginal) + `\b`)
					if usePattern.MatchString(body) {
						rels = append(rels, models.CodeRelationship{
							Source:           entity.Name,
							Target:           other.Name,
							RelationshipType: "uses",
							Context:          fmt.Sprintf("Function %s uses variable %s in %s", originalName, otherOriginal, filename),
						})
					}
				}
			}

		case "class":
			originalName := originalNameOf(entity)
			re := inheritancePattern(language, originalName)
			if re == nil {
				continue
			}
			m := re.FindStringSubmatch(content)
			if m == nil {
				continue
			}
			parentName := m[1]
			for _, candidate := range entities {
				if candidate.EntityType == "class" &&
					candidate.Properties.GetString("original_name") == parentName &&
					candidate.Properties.GetString("source_file") == entity.Properties.GetString("source_file") {
					rels = append(rels, models.CodeRelationship{
						Source:           entity.Name,
						Target:           candidate.Name,
						RelationshipType: "inherits",
						Context:          fmt.Sprintf("Class %s inherits from %s in %s", originalName, parentName, filename),
					})
					break
				}
			}
		}
	}

	return rels
}

// functionBody isolates the textual span between a function's signature and
// its matching closing brace. Best effort by regex, not brace counting; good
// enough for the uses heuristic it feeds.
func functionBody(content, name string) (string, bool) {
	pattern := `(?s)(?:function|def|void|int|string|bool)\s+` + regexp.QuoteMeta(name) + `\s*\([^{]*\)\s*\{(.*?)\}`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func originalNameOf(e models.CodeEntity) string {
	if name := e.Properties.GetString("original_name"); name != "" {
		return name
	}
	return e.Name
}

func isStandardLibrary(language, name, matchedText string) bool {
	switch language {
	case "c", "cpp":
		return strings.Contains(matchedText, "<") && strings.Contains(matchedText, ">")
	case "python":
		root, _, _ := strings.Cut(name, ".")
		return pythonStandardLibs[root]
	}
	return false
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return len(s) > 0
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
