package memory

import (
	"context"
	"testing"
)

func TestKeywordRankerOrdersByOverlap(t *testing.T) {
	candidates := []string{
		"User prefers tea over coffee in the morning",
		"User's sister lives in Portland",
		"User is training for a marathon in October",
	}

	ranked, err := KeywordRanker{}.Rank(context.Background(), "how is my marathon training going", candidates, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 2 {
		t.Fatalf("ranked = %v, want 2 results", ranked)
	}
	if ranked[0] != candidates[2] {
		t.Errorf("best match = %q, want the marathon fact", ranked[0])
	}
}

func TestKeywordRankerTopNClamped(t *testing.T) {
	ranked, err := KeywordRanker{}.Rank(context.Background(), "anything", []string{"only one"}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 1 {
		t.Errorf("ranked = %v, want all candidates when topN exceeds them", ranked)
	}
}

func TestKeywordRankerEmptyCandidates(t *testing.T) {
	ranked, err := KeywordRanker{}.Rank(context.Background(), "query", nil, 3)
	if err != nil {
		t.Fatal(err)
	}
	if ranked != nil {
		t.Errorf("ranked = %v, want nil", ranked)
	}
}

func TestTokenizeDropsStopWordsAndPunctuation(t *testing.T) {
	words := tokenize("What did I do on the trip?!")
	if words["what"] || words["the"] || words["on"] {
		t.Errorf("stop words survived: %v", words)
	}
	if !words["trip"] {
		t.Errorf("content word missing: %v", words)
	}
}
