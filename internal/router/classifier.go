package router

import (
	"context"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"selene/internal/logging"
	"selene/internal/provider"
)

// classification is the output of intent classification.
type classification struct {
	class      Class
	confidence float64
	source     string
	matched    []string
}

// -----------------------------------------------------------------------------
// Keyword classifier
// -----------------------------------------------------------------------------

type keywordRule struct {
	name       string
	pattern    *regexp.Regexp
	class      Class
	confidence float64
}

var keywordRules = []keywordRule{
	{"transform_verb", regexp.MustCompile(`(?i)^(translate|rewrite|rephrase|summarize|summarise|shorten|convert|reword|proofread|edit) `), ClassTransform, 0.9},
	{"transform_this", regexp.MustCompile(`(?i)\b(make (this|it) (shorter|longer|formal|casual)|fix (the|this) (grammar|spelling|wording))\b`), ClassTransform, 0.85},
	{"actionable_task", regexp.MustCompile(`(?i)\b(remind me|add (a )?task|create (a )?(task|note|event)|schedule|set (a )?(timer|alarm|reminder))\b`), ClassActionable, 0.9},
	{"actionable_do", regexp.MustCompile(`(?i)^(book|order|send|buy|cancel|complete|delete|save|research) `), ClassActionable, 0.8},
	{"factual_question", regexp.MustCompile(`(?i)^(who|what|when|where|why|how|which|can you tell me|do you know|explain|define|tell me about)\b`), ClassFactual, 0.75},
	{"chat_greeting", greetingPattern, ClassChat, 0.95},
	{"chat_feeling", regexp.MustCompile(`(?i)\b(i feel|i'm (feeling|so|really)|miss(ed)? you|love you|lol|haha|thank(s| you))\b`), ClassChat, 0.8},
}

// classifyKeywords runs the regex classifier. Confidence below the router
// threshold defers to the remote classifier.
func classifyKeywords(message string) classification {
	for _, rule := range keywordRules {
		if rule.pattern.MatchString(message) {
			return classification{
				class:      rule.class,
				confidence: rule.confidence,
				source:     SourceKeywordRule,
				matched:    []string{rule.name},
			}
		}
	}
	// Question mark without an interrogative opener still leans factual.
	if strings.Contains(message, "?") {
		return classification{class: ClassFactual, confidence: 0.5, source: SourceKeywordRule}
	}
	return classification{class: ClassChat, confidence: 0.4, source: SourceKeywordRule}
}

// -----------------------------------------------------------------------------
// Remote classifier with TTL cache
// -----------------------------------------------------------------------------

const classifierSystemPrompt = `You classify chat messages by intent. Respond with exactly one word:
chat - casual conversation, social, emotional
transform - rewrite, translate or summarize text the user provides
factual - a knowledge question
actionable - the user wants something done (task, booking, lookup, tool use)`

// remoteClassifier calls a low-cost model with a hard timeout and caches
// successful results by normalized, truncated message text.
type remoteClassifier struct {
	client  provider.Client
	model   string
	timeout time.Duration

	cacheMu   sync.RWMutex
	cache     map[string]cacheEntry
	ttl       time.Duration
	keyLength int
	sweepDen  int
}

type cacheEntry struct {
	class   Class
	expires time.Time
}

func newRemoteClassifier(client provider.Client, model string, timeout, ttl time.Duration, keyLength, sweepDen int) *remoteClassifier {
	if keyLength <= 0 {
		keyLength = 200
	}
	if sweepDen <= 0 {
		sweepDen = 50
	}
	return &remoteClassifier{
		client:    client,
		model:     model,
		timeout:   timeout,
		cache:     make(map[string]cacheEntry),
		ttl:       ttl,
		keyLength: keyLength,
		sweepDen:  sweepDen,
	}
}

// cacheKey normalizes and truncates a message for cache lookup.
func (rc *remoteClassifier) cacheKey(message string) string {
	key := strings.ToLower(strings.TrimSpace(message))
	key = strings.Join(strings.Fields(key), " ")
	if len(key) > rc.keyLength {
		key = key[:rc.keyLength]
	}
	return key
}

// classify returns the remote classification. Timeout or failure returns
// ClassFactual: uncertainty biases toward more scrutiny, not less.
func (rc *remoteClassifier) classify(ctx context.Context, message string) classification {
	key := rc.cacheKey(message)

	rc.cacheMu.RLock()
	entry, ok := rc.cache[key]
	rc.cacheMu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		logging.RouterDebug("classifier cache hit: %s", entry.class)
		return classification{class: entry.class, confidence: 0.8, source: SourceLLMClassifier}
	}

	// Probabilistic sweep: amortized eviction, not a correctness requirement.
	if rand.Intn(rc.sweepDen) == 0 {
		rc.sweep()
	}

	if rc.client == nil {
		return classification{class: ClassFactual, confidence: 0.5, source: SourceFailSafe}
	}

	callCtx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()

	result, err := rc.client.CompleteWithOptions(callCtx, provider.Request{
		Model: rc.model,
		Messages: []provider.Message{
			{Role: "system", Content: classifierSystemPrompt},
			{Role: "user", Content: message},
		},
		Options: provider.Options{Temperature: 0, MaxTokens: 8, LoggingContext: "router.classifier"},
	})
	if err != nil {
		logging.Get(logging.CategoryRouter).Warn("remote classifier failed: %v (degrading to factual)", err)
		return classification{class: ClassFactual, confidence: 0.5, source: SourceFailSafe}
	}

	class, ok := parseClass(result.Content)
	if !ok {
		logging.Get(logging.CategoryRouter).Warn("remote classifier returned %q (degrading to factual)", result.Content)
		return classification{class: ClassFactual, confidence: 0.5, source: SourceFailSafe}
	}

	rc.cacheMu.Lock()
	rc.cache[key] = cacheEntry{class: class, expires: time.Now().Add(rc.ttl)}
	rc.cacheMu.Unlock()

	return classification{class: class, confidence: 0.8, source: SourceLLMClassifier}
}

// sweep evicts expired cache entries.
func (rc *remoteClassifier) sweep() {
	now := time.Now()
	rc.cacheMu.Lock()
	defer rc.cacheMu.Unlock()

	removed := 0
	for key, entry := range rc.cache {
		if now.After(entry.expires) {
			delete(rc.cache, key)
			removed++
		}
	}
	if removed > 0 {
		logging.RouterDebug("classifier cache sweep removed %d entries", removed)
	}
}

// parseClass parses a one-word classifier response.
func parseClass(s string) (Class, bool) {
	switch Class(strings.ToLower(strings.TrimSpace(s))) {
	case ClassChat:
		return ClassChat, true
	case ClassTransform:
		return ClassTransform, true
	case ClassFactual:
		return ClassFactual, true
	case ClassActionable:
		return ClassActionable, true
	}
	return "", false
}
