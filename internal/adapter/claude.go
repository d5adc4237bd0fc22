package adapter

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// claudeAdapter implements Provider for Anthropic Claude.
type claudeAdapter struct {
	client *anthropic.Client
}

// NewClaude creates a Claude provider.
func NewClaude(opts Options) Provider {
	var copts []anthropic.ClientOption
	if opts.BaseURL != "" {
		copts = append(copts, anthropic.WithBaseURL(trimBase(opts.BaseURL, "")))
	}
	if opts.HTTPClient != nil {
		copts = append(copts, anthropic.WithHTTPClient(opts.HTTPClient))
	}
	return &claudeAdapter{client: anthropic.NewClient(opts.APIKey, copts...)}
}

func (c *claudeAdapter) Name() string { return ProviderClaude }

func (c *claudeAdapter) Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	// Claude takes the system prompt separately from the turn list.
	var system []string
	messages := make([]anthropic.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			messages = append(messages, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Content)},
			})
		default:
			messages = append(messages, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Content)},
			})
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	ch := make(chan StreamChunk, 64)
	started := make(chan struct{})
	done := make(chan error, 1)
	var once sync.Once
	markStarted := func() { once.Do(func() { close(started) }) }

	// The library is callback based; the request runs in its own goroutine
	// and Stream waits for either the first event or a rejection.
	go func() {
		defer close(ch)

		_, err := c.client.CreateMessagesStream(ctx, anthropic.MessagesStreamRequest{
			MessagesRequest: anthropic.MessagesRequest{
				Model:     anthropic.Model(req.Model),
				Messages:  messages,
				MaxTokens: maxTokens,
				System:    strings.Join(system, "\n\n"),
			},
			OnMessageStart: func(anthropic.MessagesEventMessageStartData) {
				markStarted()
			},
			OnContentBlockDelta: func(delta anthropic.MessagesEventContentBlockDeltaData) {
				markStarted()
				if delta.Delta.Type == anthropic.MessagesContentTypeTextDelta {
					send(ctx, ch, StreamChunk{Text: delta.Delta.GetText()})
				}
			},
		})
		if errors.Is(err, io.EOF) {
			err = nil
		}

		select {
		case <-started:
			if err != nil && ctx.Err() == nil {
				send(ctx, ch, StreamChunk{Error: claudeError(err, req.Model)})
			}
		default:
			done <- err
		}
	}()

	select {
	case <-started:
		return ch, nil
	case err := <-done:
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, claudeError(err, req.Model)
		}
		return ch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func claudeError(err error, model string) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		kind := KindTransport
		switch {
		case apiErr.IsAuthenticationErr(), apiErr.IsPermissionErr():
			kind = KindAuth
		case apiErr.IsRateLimitErr():
			kind = KindRateLimit
		case apiErr.IsNotFoundErr():
			kind = KindModelNotFound
		case apiErr.IsInvalidRequestErr():
			kind = KindBadRequest
		}
		return &Error{Kind: kind, Model: model, Message: apiErr.Message, Err: err}
	}
	return &Error{Kind: KindTransport, Model: model, Err: err}
}
