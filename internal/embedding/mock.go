package embedding

import (
	"context"
	"math"
)

// MockProvider produces deterministic pseudo-embeddings from a text hash.
// Identical texts always map to identical vectors, which is enough for tests
// and offline development without an embedding server.
type MockProvider struct {
	dimensions int
}

func NewMockProvider(dimensions int) *MockProvider {
	return &MockProvider{dimensions: dimensions}
}

func (m *MockProvider) Dimensions() int {
	return m.dimensions
}

func (m *MockProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, m.dimensions)
	if text == "" {
		return vec, nil
	}

	seed := hashText(text)
	var norm float64
	for i := range vec {
		seed = seed*31 + uint64(i) + 1
		v := float32(seed%1000)/500.0 - 1.0
		vec[i] = v
		norm += float64(v) * float64(v)
	}

	// Normalize so cosine similarity behaves like a real model's output.
	if norm > 0 {
		scale := float32(1.0 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func (m *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// djb2
func hashText(s string) uint64 {
	var h uint64 = 5381
	for _, c := range []byte(s) {
		h = h*33 + uint64(c)
	}
	return h
}
