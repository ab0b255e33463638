package llm

import "context"

// GenerationParams tune one generation request. Nil fields keep the backend
// defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
	TopP        *float32 `json:"top_p"`
	Stop        []string `json:"stop"`
}

// Client is the generative-model collaborator. Both the AI-assisted extractor
// and the answer composer speak through it, so tests can substitute a
// deterministic fake.
type Client interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Float32 and Int are pointer helpers for GenerationParams fields.
func Float32(v float32) *float32 { return &v }
func Int(v int) *int             { return &v }
