package parser

import "regexp"

// languageSignature scores one language against a file. A pattern hit on the
// file path is worth 2 points, a hit on the content 1 point; the first
// language in declaration order to reach 2 points wins. Declaration order is
// part of the contract: downstream pattern tables are keyed by the returned
// tag, so ties must resolve the same way on every run.
type languageSignature struct {
	name     string
	patterns []*regexp.Regexp
}

const detectThreshold = 2

var languageSignatures = []languageSignature{
	// Legacy languages first: their signatures are the most specific.
	{"cobol", compileSignatures(`\.cob$`, `\.cbl$`, `\.cpy$`, `IDENTIFICATION\s+DIVISION`, `PROGRAM-ID`, `PROCEDURE\s+DIVISION`, `DATA\s+DIVISION`)},
	{"jcl", compileSignatures(`\.jcl$`, `//\w+\s+JOB`, `//\w+\s+EXEC`, `//\w+\s+DD`, `//SYSOUT`)},
	{"sas", compileSignatures(`\.sas$`, `proc\s+\w+`, `data\s+\w+`, `run;`, `libname\s+`, `%macro`, `%mend`)},
	{"rpg", compileSignatures(`\.rpg$`, `\.rpgle$`, `dcl-proc`, `dcl-f`, `dcl-ds`, `dcl-c`, `ctl-opt`)},
	{"flink", compileSignatures(`\.flink$`, `\.flk$`, `StreamExecutionEnvironment`, `DataStream`, `createLocalEnvironment`)},
	{"fortran", compileSignatures(`\.for$`, `\.f$`, `\.f77$`, `\.f90$`, `program\s+\w+`, `subroutine\s+\w+`, `function\s+\w+`, `end\s+program`)},
	{"pli", compileSignatures(`\.pli$`, `\.pl1$`, `PROCEDURE\s+OPTIONS`, `DECLARE`, `END;`)},
	{"assembly", compileSignatures(`\.asm$`, `\.s$`, `\.S$`, `section\s+\.text`, `global\s+_start`, `\.data`, `\.bss`)},

	{"c", compileSignatures(`\.c$`, `\.h$`, `#include\s*<`, `int\s+main\s*\(`)},
	{"cpp", compileSignatures(`\.cpp$`, `\.cc$`, `\.cxx$`, `\.hpp$`, `#include\s*<iostream>`, `using\s+namespace`)},
	{"python", compileSignatures(`\.py$`, `import\s+`, `def\s+`, `class\s+`)},
	{"java", compileSignatures(`\.java$`, `public\s+class`, `import\s+java\.`)},
	{"javascript", compileSignatures(`\.js$`, `const\s+`, `let\s+`, `function\s+`, `export\s+`)},
	{"typescript", compileSignatures(`\.ts$`, `\.tsx$`, `interface\s+`, `type\s+`, `export\s+`)},
	{"csharp", compileSignatures(`\.cs$`, `namespace\s+`, `using\s+System`, `public\s+class`)},
	{"go", compileSignatures(`\.go$`, `package\s+`, `import\s+\(`, `func\s+`)},
	{"ruby", compileSignatures(`\.rb$`, `require\s+`, `def\s+`, `class\s+`)},
	{"php", compileSignatures(`\.php$`, `<\?php`, `function\s+`, `class\s+`)},
}

func compileSignatures(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(`(?im)` + p)
	}
	return compiled
}

// LanguageUnknown is returned when no language reaches the score threshold.
// Files tagged unknown still produce a file-level entity from the generic
// pattern set.
const LanguageUnknown = "unknown"

// DetectLanguage guesses the language of a file from its path and content.
func DetectLanguage(filePath, content string) string {
	for _, sig := range languageSignatures {
		score := 0
		for _, re := range sig.patterns {
			if re.MatchString(filePath) {
				score += 2
			}
			if re.MatchString(content) {
				score++
			}
			if score >= detectThreshold {
				return sig.name
			}
		}
	}
	return LanguageUnknown
}
