package memory

import (
	"context"
	"fmt"
	"math"
	"sort"

	"google.golang.org/genai"

	"selene/internal/logging"
)

// =============================================================================
// EMBEDDING RANKER
// =============================================================================

// EmbeddingRanker scores candidates by cosine similarity to the query
// using Gemini embeddings.
type EmbeddingRanker struct {
	client *genai.Client
	model  string
}

// NewEmbeddingRanker creates an embedding ranker.
func NewEmbeddingRanker(apiKey, model string) (*EmbeddingRanker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &EmbeddingRanker{client: client, model: model}, nil
}

// Rank orders candidates by similarity to the query, best first, and
// returns at most topN of them.
func (r *EmbeddingRanker) Rank(ctx context.Context, query string, candidates []string, topN int) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	texts := append([]string{query}, candidates...)
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	result, err := r.client.Models.EmbedContent(ctx, r.model, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	queryVec := result.Embeddings[0].Values
	type scored struct {
		text  string
		score float64
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{text: c, score: cosine(queryVec, result.Embeddings[i+1].Values)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if topN > len(ranked) {
		topN = len(ranked)
	}
	out := make([]string, 0, topN)
	for _, s := range ranked[:topN] {
		out = append(out, s.text)
	}
	logging.MemoryDebug("embedding ranker scored %d candidates", len(candidates))
	return out, nil
}

// cosine computes cosine similarity between two vectors. Mismatched or
// zero vectors score 0.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
