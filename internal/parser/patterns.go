package parser

import (
	"fmt"
	"regexp"
)

// entityPattern couples an entity type tag with the pattern that captures its
// name. Tables are ordered slices, not maps: extraction order is stable so the
// same file always yields the same entity list.
type entityPattern struct {
	entityType string
	re         *regexp.Regexp
}

// Entity types in this set are treated as imports: they keep their literal
// captured name and produce an `imports` edge instead of `defines`.
var importEntityTypes = map[string]bool{
	"include":         true,
	"system_include":  true,
	"project_include": true,
	"import":          true,
	"from_import":     true,
}

// COBOL sources are column-sensitive and case-significant, so its table is
// compiled without the case-insensitive flag.
func cobolPatterns() []entityPattern {
	return compileTable(`(?m)`, [][2]string{
		{"paragraph", `^[ ]*([A-Z0-9][A-Z0-9-]*)\s*\.`},
		{"variable", `^\s*\d+\s+([A-Z0-9-]+)(?:\s+PIC|\s+PICTURE)`},
		{"file", `SELECT\s+([A-Z0-9-]+)\s+ASSIGN\s+TO`},
		{"program", `PROGRAM-ID.\s+([A-Z0-9-]+)`},
		{"business_rule", `^\s*IF\s+(.+?)\s+THEN`},
	})
}

var entityPatterns = map[string][]entityPattern{
	"cobol": cobolPatterns(),
	"c": compileTable(`(?im)`, [][2]string{
		{"function", `(?:^|\s)(?:static\s+)?(?:void|int|char|float|double|long|size_t|struct\s+\w+|\w+_t)\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\([^;]*\)\s*\{`},
		{"variable", `(?:^|\s)(?:static\s+)?(?:int|char|float|double|long|size_t|\w+_t)\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*(?:=|;|\[)`},
		{"struct", `struct\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\{`},
		{"include", `#include\s*[<"]([^>"]+)[>"]`},
		{"define", `#define\s+([a-zA-Z_][a-zA-Z0-9_]*)`},
	}),
	"cpp": compileTable(`(?im)`, [][2]string{
		{"function", `(?:^|\s)(?:static\s+)?(?:void|int|char|float|double|long|size_t|bool|auto|std::\w+|struct\s+\w+|\w+::\w+|\w+_t)\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\([^;]*\)\s*(?:const\s*)?\{`},
		{"method", `(?:^|\s)(?:virtual\s+)?(?:void|int|char|float|double|long|size_t|bool|auto|std::\w+|\w+::\w+|\w+_t)\s+(?:[a-zA-Z_][a-zA-Z0-9_<>]*)::\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\([^;]*\)\s*(?:const\s*)?\{`},
		{"class", `class\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*(?::|final|\{)`},
		{"variable", `(?:^|\s)(?:static\s+)?(?:int|char|float|double|long|size_t|bool|auto|std::\w+|\w+::\w+|\w+_t)\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*(?:=|;|\[)`},
		{"struct", `struct\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\{`},
		{"include", `#include\s*[<"]([^>"]+)[>"]`},
		{"define", `#define\s+([a-zA-Z_][a-zA-Z0-9_]*)`},
	}),
	"python": compileTable(`(?im)`, [][2]string{
		{"function", `def\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\(`},
		{"class", `class\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*(?:\(|:)`},
		{"variable", `^([a-zA-Z_][a-zA-Z0-9_]*)\s*=\s*[^=]`},
		{"import", `^import\s+([a-zA-Z_][a-zA-Z0-9_.]*)(?:\s+as\s+[a-zA-Z_][a-zA-Z0-9_]*)?$`},
		{"from_import", `from\s+([a-zA-Z_][a-zA-Z0-9_.]*)\s+import`},
	}),
	"java": compileTable(`(?im)`, [][2]string{
		{"function", `(?:public|private|protected|static|\s)+[\w<>\[\],\s]+\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\([^)]*\)\s*(?:throws\s+[\w\s,]+)?\s*\{`},
		{"class", `(?:public|private|protected)\s+class\s+([a-zA-Z_][a-zA-Z0-9_]*)`},
		{"interface", `(?:public|private|protected)\s+interface\s+([a-zA-Z_][a-zA-Z0-9_]*)`},
		{"variable", `(?:public|private|protected|static|\s)+(?:final\s+)?[\w<>\[\],\s]+\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*(?:=|;)`},
		{"import", `import\s+([a-zA-Z_][a-zA-Z0-9_.]*)(?:\s*\*)?;`},
	}),
	"javascript": compileTable(`(?im)`, [][2]string{
		{"function", `function\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\(`},
		{"class", `class\s+([a-zA-Z_][a-zA-Z0-9_]*)`},
		{"arrow_function", `(?:const|let|var)\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*=\s*(?:async\s*)?\([^)]*\)\s*=>`},
		{"variable", `(?:const|let|var)\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*=`},
		{"import", `import\s+(?:\{[^}]*\}|[^{;]*)\s+from\s+['"]([^'"]+)['"]`},
	}),
	"typescript": compileTable(`(?im)`, [][2]string{
		{"function", `function\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*<?\s*[^>(]*>?\s*\(`},
		{"class", `class\s+([a-zA-Z_][a-zA-Z0-9_]*)`},
		{"interface", `interface\s+([a-zA-Z_][a-zA-Z0-9_]*)`},
		{"arrow_function", `(?:const|let|var)\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*=\s*(?:async\s*)?\([^)]*\)\s*=>`},
		{"type", `type\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*=`},
		{"variable", `(?:const|let|var)\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*:?`},
		{"import", `import\s+(?:\{[^}]*\}|[^{;]*)\s+from\s+['"]([^'"]+)['"]`},
	}),
	"unknown": compileTable(`(?im)`, [][2]string{
		{"function", `function\s+([a-zA-Z_][a-zA-Z0-9_]*)`},
		{"class", `class\s+([a-zA-Z_][a-zA-Z0-9_]*)`},
		{"variable", `(?:var|let|const)\s+([a-zA-Z_][a-zA-Z0-9_]*)`},
	}),
}

func compileTable(flags string, rows [][2]string) []entityPattern {
	table := make([]entityPattern, len(rows))
	for i, row := range rows {
		table[i] = entityPattern{entityType: row[0], re: regexp.MustCompile(flags + row[1])}
	}
	return table
}

// patternsFor returns the table for a language, falling back to the generic
// detectors for languages without a dedicated table.
func patternsFor(language string) []entityPattern {
	if table, ok := entityPatterns[language]; ok {
		return table
	}
	return entityPatterns["unknown"]
}

// inheritanceTemplates hold per-language single-parent-class patterns. The
// class name is inserted with QuoteMeta at lookup time.
var inheritanceTemplates = map[string]string{
	"python":     `class\s+%s\s*\(\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\)`,
	"java":       `class\s+%s\s+extends\s+([a-zA-Z_][a-zA-Z0-9_]*)`,
	"javascript": `class\s+%s\s+extends\s+([a-zA-Z_][a-zA-Z0-9_]*)`,
	"php":        `class\s+%s\s+extends\s+([a-zA-Z_][a-zA-Z0-9_]*)`,
	"cpp":        `class\s+%s\s*:\s*(?:public|protected|private)\s+([a-zA-Z_][a-zA-Z0-9_]*)`,
}

func inheritancePattern(language, className string) *regexp.Regexp {
	tmpl, ok := inheritanceTemplates[language]
	if !ok {
		return nil
	}
	re, err := regexp.Compile(`(?m)` + fmt.Sprintf(tmpl, regexp.QuoteMeta(className)))
	if err != nil {
		return nil
	}
	return re
}

// pythonStandardLibs is the fixed module list used for the
// is_standard_library heuristic on Python imports.
var pythonStandardLibs = map[string]bool{
	"os": true, "sys": true, "re": true, "math": true, "json": true,
	"time": true, "datetime": true, "random": true, "collections": true,
	"itertools": true, "functools": true, "threading": true, "multiprocessing": true,
}
