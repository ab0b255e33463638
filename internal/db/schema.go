package db

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/codeatlas/backend/internal/models"
)

// Node labels and relationship types are interpolated into Cypher text, so
// everything in this file funnels untrusted extractor output through fixed
// tables or identifier validation before it can reach a query string. Values
// always travel as parameters; only sanitized identifiers are interpolated.

// fileLabels maps a file extension to the secondary label on its File node.
var fileLabels = map[string]string{
	".h":    "HeaderFile",
	".hpp":  "HeaderFile",
	".hxx":  "HeaderFile",
	".c":    "SourceFile",
	".cpp":  "SourceFile",
	".cc":   "SourceFile",
	".cxx":  "SourceFile",
	".py":   "PythonModule",
	".js":   "JavaScriptModule",
	".jsx":  "JavaScriptModule",
	".ts":   "JavaScriptModule",
	".tsx":  "JavaScriptModule",
	".java": "JavaClass",
	".html": "DataFile",
	".xml":  "DataFile",
	".json": "DataFile",
	".yaml": "DataFile",
	".yml":  "DataFile",
}

const defaultFileLabel = "Module"

// FileLabel returns the secondary node label for a file path.
func FileLabel(path string) string {
	if label, ok := fileLabels[strings.ToLower(filepath.Ext(path))]; ok {
		return label
	}
	return defaultFileLabel
}

// entityLabels is the fixed entity-type to node-label table. Lookups are
// case-insensitive on the entity type.
var entityLabels = map[string]string{
	"function":         "Function",
	"method":           "Function",
	"variable":         "Variable",
	"struct":           "Struct",
	"record":           "Record",
	"type":             "Type",
	"module":           "Module",
	"file":             "Module",
	"source_file":      "Module",
	"class":            "Class",
	"object":           "Object",
	"database_table":   "DatabaseTable",
	"entity":           "Entity",
	"external_api":     "ExternalAPI",
	"service":          "Service",
	"business_rule":    "BusinessRule",
	"requirement":      "Requirement",
	"loop":             "Loop",
	"branch":           "Branch",
	"input_operation":  "InputOperation",
	"output_operation": "OutputOperation",
	"user_input":       "UserInput",
	"job":              "Job",
	"script":           "Script",
	"program":          "Program",
	"constant":         "Constant",
	"interface":        "Interface",
	"import":           "Import",
	"paragraph":        "Paragraph",
	"enum":             "Enum",
	"define":           "Define",
	"operation":        "Operation",
	"arrow_function":   "Function",
}

// EntityLabel maps an extracted entity type to a node label. Unknown types
// are capitalized; anything that still is not identifier-shaped collapses to
// the generic Entity label.
func EntityLabel(entityType string) string {
	if label, ok := entityLabels[strings.ToLower(entityType)]; ok {
		return label
	}

	label := entityType
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}
	if !models.ValidIdentifier(label) {
		return "Entity"
	}
	return label
}

// relationshipTypes is the fixed relationship-type table.
var relationshipTypes = map[string]string{
	"calls":            "CALLS",
	"defines":          "DEFINES",
	"declares":         "DECLARES",
	"uses":             "USES",
	"assigns":          "ASSIGNS",
	"depends_on":       "DEPENDS_ON",
	"reads_from":       "READS_FROM",
	"writes_to":        "WRITES_TO",
	"interacts_with":   "INTERACTS_WITH",
	"returns":          "RETURNS",
	"composes":         "COMPOSES",
	"contains":         "CONTAINS",
	"executes":         "EXECUTES",
	"satisfies":        "SATISFIES",
	"triggered_by":     "TRIGGERED_BY",
	"controls_flow_to": "CONTROLS_FLOW_TO",
	"spawns":           "SPAWNS",
	"includes":         "INCLUDES",
	"imports":          "IMPORTS",
	"inherits":         "INHERITS_FROM",
	"extends":          "EXTENDS",
	"implements":       "IMPLEMENTS",
	"logs_to":          "LOGS_TO",
	"allocates":        "ALLOCATES",
	"deallocates":      "DEALLOCATES",
}

var relTypeStrip = regexp.MustCompile(`[^A-Z_]`)

// RelationshipType maps an extracted relationship type to an edge type. Types
// outside the fixed table are upper-cased with spaces collapsed to
// underscores, then stripped of every character that is not [A-Z_]. Returns
// "" when nothing survives; callers skip those edges.
func RelationshipType(relType string) string {
	if mapped, ok := relationshipTypes[strings.ToLower(relType)]; ok {
		return mapped
	}

	sanitized := strings.ToUpper(strings.TrimSpace(relType))
	sanitized = strings.ReplaceAll(sanitized, " ", "_")
	sanitized = relTypeStrip.ReplaceAllString(sanitized, "")
	sanitized = strings.Trim(sanitized, "_")
	return sanitized
}

// TraversalRelTypes is the whitelist used for neighborhood expansion during
// retrieval.
const TraversalRelTypes = "CALLS|USES|DEFINES|CONTAINS|IMPORTS|DEPENDS_ON|READS_FROM|WRITES_TO"
