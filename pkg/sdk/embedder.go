package matchdex

import "context"

// Embedder converts text to vector embeddings.
// Profiles are embedded from "About" and "Seeks" text; free-text queries as given.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}
