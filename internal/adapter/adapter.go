// Package adapter provides a unified streaming interface over chat
// completion providers.
package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Provider name constants.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderClaude     = "claude"
	ProviderOllama     = "ollama"
)

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the request's message array.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest holds the parameters for one streamed completion.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// StreamChunk is a single piece of text or an error delivered during
// streaming. The channel is closed when the stream ends.
type StreamChunk struct {
	Text  string
	Error error
}

// Provider is implemented by every completion backend.
//
// Stream returns an *Error synchronously when the provider rejects the
// request (bad key, unknown model, rate limit) so callers can react before
// any text arrives. Failures after streaming has begun are delivered as a
// chunk with Error set. Cancelling ctx stops the stream and closes the
// channel.
type Provider interface {
	Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
	Name() string
}

// Options configures a provider.
type Options struct {
	APIKey     string
	BaseURL    string
	Referer    string
	Title      string
	HTTPClient *http.Client
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{}
}

// New constructs the Provider for the named backend.
func New(provider string, opts Options) (Provider, error) {
	switch provider {
	case ProviderOpenRouter:
		return NewOpenRouter(opts), nil
	case ProviderOpenAI:
		return NewOpenAI(opts), nil
	case ProviderClaude:
		return NewClaude(opts), nil
	case ProviderOllama:
		return NewOllama(opts), nil
	default:
		return nil, fmt.Errorf("adapter: unknown provider %q; valid providers: openrouter, openai, claude, ollama", provider)
	}
}

// send delivers c unless ctx is done first.
func send(ctx context.Context, ch chan<- StreamChunk, c StreamChunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

func trimBase(url, def string) string {
	if url == "" {
		url = def
	}
	return strings.TrimRight(url, "/")
}
