package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileLabel(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"src/auth.py", "PythonModule"},
		{"include/list.h", "HeaderFile"},
		{"engine.CPP", "SourceFile"},
		{"app/store.tsx", "JavaScriptModule"},
		{"Main.java", "JavaClass"},
		{"config.yaml", "DataFile"},
		{"PAYROLL.CBL", "Module"},
		{"Makefile", "Module"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FileLabel(tc.path), tc.path)
	}
}

func TestEntityLabel(t *testing.T) {
	assert.Equal(t, "Function", EntityLabel("function"))
	assert.Equal(t, "Function", EntityLabel("METHOD"))
	assert.Equal(t, "BusinessRule", EntityLabel("business_rule"))
	assert.Equal(t, "Operation", EntityLabel("operation"))

	// Unknown types are capitalized when identifier-shaped.
	assert.Equal(t, "Widget", EntityLabel("widget"))

	// Anything else collapses to the generic label instead of reaching a
	// query string.
	assert.Equal(t, "Entity", EntityLabel("drop table; --"))
	assert.Equal(t, "Entity", EntityLabel(""))
	assert.Equal(t, "Entity", EntityLabel("foo-bar"))
}

func TestRelationshipType(t *testing.T) {
	assert.Equal(t, "CALLS", RelationshipType("calls"))
	assert.Equal(t, "INHERITS_FROM", RelationshipType("inherits"))
	assert.Equal(t, "READS_FROM", RelationshipType("READS_FROM"))

	// Off-table types are sanitized to [A-Z_].
	assert.Equal(t, "FLOWS_INTO", RelationshipType("flows into"))
	assert.Equal(t, "CALLSX_DETACH_DELETE_X", RelationshipType("calls]->(x) detach delete x"))
	assert.Equal(t, "", RelationshipType("123"))
	assert.Equal(t, "", RelationshipType(""))
}
