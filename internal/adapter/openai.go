package adapter

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// openaiAdapter implements Provider for OpenAI and OpenAI-compatible APIs.
type openaiAdapter struct {
	client *openai.Client
}

// NewOpenAI creates an OpenAI provider. BaseURL may point at any
// OpenAI-compatible endpoint.
func NewOpenAI(opts Options) Provider {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = trimBase(opts.BaseURL, "")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	return &openaiAdapter{client: openai.NewClientWithConfig(cfg)}
}

func (o *openaiAdapter) Name() string { return ProviderOpenAI }

func (o *openaiAdapter) Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		Stream:      true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, openaiError(err, req.Model)
	}

	ch := make(chan StreamChunk, 64)
	go func() {
		defer close(ch)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					send(ctx, ch, StreamChunk{Error: openaiError(err, req.Model)})
				}
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			if !send(ctx, ch, StreamChunk{Text: resp.Choices[0].Delta.Content}) {
				return
			}
		}
	}()

	return ch, nil
}

func openaiError(err error, model string) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Error{Kind: KindForStatus(apiErr.HTTPStatusCode), StatusCode: apiErr.HTTPStatusCode, Model: model, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &Error{Kind: KindForStatus(reqErr.HTTPStatusCode), StatusCode: reqErr.HTTPStatusCode, Model: model, Err: err}
	}
	return &Error{Kind: KindTransport, Model: model, Err: err}
}
