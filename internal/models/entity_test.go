package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"simple", "line_count", true},
		{"mixed case", "returnType", true},
		{"single letter", "x", true},
		{"leading digit", "1count", false},
		{"leading underscore", "_private", false},
		{"hyphen", "line-count", false},
		{"space", "line count", false},
		{"cypher injection", "x} DETACH DELETE n //", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidIdentifier(tt.input))
		})
	}
}

func TestPropertiesSanitized(t *testing.T) {
	props := Properties{
		"line_count":  42,
		"is_exported": true,
		"score":       0.95,
		"signature":   "func(a, b int) error",
		"nilValue":    nil,
		"bad-key":     "dropped",
		"1numeric":    "dropped",
		"parameters":  []string{"a", "b"},
		"extra":       map[string]any{"nested": 1},
	}

	out := props.Sanitized()

	assert.Equal(t, 42, out["line_count"])
	assert.Equal(t, true, out["is_exported"])
	assert.Equal(t, 0.95, out["score"])
	assert.Equal(t, "func(a, b int) error", out["signature"])

	assert.NotContains(t, out, "nilValue")
	assert.NotContains(t, out, "bad-key")
	assert.NotContains(t, out, "1numeric")

	// non-scalar values are stored as JSON strings
	assert.Equal(t, `["a","b"]`, out["parameters"])
	assert.Equal(t, `{"nested":1}`, out["extra"])
}

func TestPropertiesSanitizedEmpty(t *testing.T) {
	assert.Empty(t, Properties{}.Sanitized())
	assert.Empty(t, Properties(nil).Sanitized())
}

func TestPropertiesGetString(t *testing.T) {
	props := Properties{
		"original_name": "login",
		"line_count":    10,
	}

	assert.Equal(t, "login", props.GetString("original_name"))
	assert.Equal(t, "", props.GetString("line_count"))
	assert.Equal(t, "", props.GetString("missing"))
}
