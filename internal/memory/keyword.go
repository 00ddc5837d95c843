package memory

import (
	"context"
	"sort"
	"strings"
)

// KeywordRanker scores candidates by word overlap with the query. It is
// the zero-dependency fallback when embeddings are disabled or failing.
type KeywordRanker struct{}

// Rank orders candidates by overlap score, best first.
func (KeywordRanker) Rank(_ context.Context, query string, candidates []string, topN int) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	queryWords := tokenize(query)
	type scored struct {
		text  string
		score float64
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{text: c, score: overlap(queryWords, tokenize(c))}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if topN > len(ranked) {
		topN = len(ranked)
	}
	out := make([]string, 0, topN)
	for _, s := range ranked[:topN] {
		out = append(out, s.text)
	}
	return out, nil
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"i": true, "me": true, "my": true, "you": true, "it": true, "to": true,
	"of": true, "in": true, "on": true, "for": true, "and": true, "or": true,
	"do": true, "did": true, "what": true, "how": true, "that": true,
}

func tokenize(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:'\"()")
		if len(w) > 1 && !stopWords[w] {
			words[w] = true
		}
	}
	return words
}

func overlap(query, candidate map[string]bool) float64 {
	if len(query) == 0 || len(candidate) == 0 {
		return 0
	}
	shared := 0
	for w := range query {
		if candidate[w] {
			shared++
		}
	}
	return float64(shared) / float64(len(query))
}
