package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// DefaultOpenRouterURL is the OpenRouter API base.
const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

// openRouterAdapter speaks the OpenRouter chat completions SSE protocol.
type openRouterAdapter struct {
	baseURL string
	apiKey  string
	referer string
	title   string
	client  *http.Client
}

// NewOpenRouter creates an OpenRouter provider.
func NewOpenRouter(opts Options) Provider {
	return &openRouterAdapter{
		baseURL: trimBase(opts.BaseURL, DefaultOpenRouterURL),
		apiKey:  opts.APIKey,
		referer: opts.Referer,
		title:   opts.Title,
		client:  opts.httpClient(),
	}
}

func (o *openRouterAdapter) Name() string { return ProviderOpenRouter }

type openRouterRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

// openRouterChunk is one streamed event payload.
type openRouterChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (o *openRouterAdapter) Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	body, err := json.Marshal(openRouterRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("openrouter marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openrouter request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
	if o.referer != "" {
		httpReq.Header.Set("HTTP-Referer", o.referer)
	}
	if o.title != "" {
		httpReq.Header.Set("X-Title", o.title)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Kind: KindTransport, Model: req.Model, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, statusError(resp.StatusCode, req.Model, raw)
	}

	ch := make(chan StreamChunk, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		var streamErr error
		err := readDataLines(resp.Body, func(payload string) bool {
			var chunk openRouterChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				return true
			}
			if chunk.Error != nil {
				streamErr = &Error{Kind: KindForStatus(chunk.Error.Code), StatusCode: chunk.Error.Code, Model: req.Model, Message: chunk.Error.Message}
				return false
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				return true
			}
			return send(ctx, ch, StreamChunk{Text: chunk.Choices[0].Delta.Content})
		})
		if streamErr == nil && err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
			streamErr = &Error{Kind: KindTransport, Model: req.Model, Err: err}
		}
		if streamErr != nil {
			send(ctx, ch, StreamChunk{Error: streamErr})
		}
	}()

	return ch, nil
}
