package embedding

import "context"

// Provider produces vector embeddings for entity descriptions and questions.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Embed returns the embedding for a single text. Empty input yields a
	// zero vector of the provider's dimension, not an error, so callers can
	// index entities with blank descriptions.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds several texts in one round trip. The result is
	// positionally aligned with the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the vector size this provider produces. It must match
	// the dimension of the graph's vector indexes.
	Dimensions() int
}
