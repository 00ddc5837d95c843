// Package provider implements the completion provider boundary.
// The pipeline is provider-agnostic: it talks to the Client interface and
// receives content plus token accounting, never provider-specific payloads.
package provider

import (
	"context"
	"errors"
)

// Client defines the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	CompleteWithOptions(ctx context.Context, req Request) (*Result, error)
}

// Streamer is implemented by clients that support incremental output.
type Streamer interface {
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
}

// Message is one conversation message.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Options tune a single completion call.
type Options struct {
	Temperature    float64
	MaxTokens      int
	LoggingContext string // free-form tag threaded into api logs
}

// Request is a full completion request.
type Request struct {
	Model    string
	Messages []Message
	Options  Options
}

// Result is a completed response with token accounting.
type Result struct {
	Content      string
	InputTokens  int
	OutputTokens int
	CacheTokens  int
	Model        string
	Provider     string
}

// Chunk is one streaming increment. The final chunk has Done=true and
// carries the usage summary; content chunks carry Delta only.
type Chunk struct {
	Delta string
	Done  bool
	Usage *Result
	Err   error
}

// ErrNoCompletion is returned when a provider responds without content.
var ErrNoCompletion = errors.New("no completion returned")
