// Package completion streams one assistant reply from a provider, walking
// a model fallback ladder and honouring cancellation.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/personachat/personachat/internal/adapter"
	"github.com/personachat/personachat/internal/budget"
	"github.com/personachat/personachat/internal/logger"
)

// Outcome is how a stream ended when it did not fail.
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomeAborted  Outcome = "aborted"
)

// Turn is one prior message offered as history. Transient turns (still
// generating, or failed) are never sent to the provider.
type Turn struct {
	Role      adapter.Role
	Content   string
	Transient bool
}

// Request is the input to Stream.
type Request struct {
	SystemPrompt string
	History      []Turn
}

// Result describes a finished stream. Content holds everything applied
// through onChunk, including the partial text of an aborted stream.
type Result struct {
	Outcome  Outcome
	Model    string
	Content  string
	Attempts int
}

// Config holds the model ladder and sampling parameters.
type Config struct {
	PrimaryModel     string
	FallbackModels   []string
	Temperature      float64
	MaxTokens        int
	IdleTimeout      time.Duration
	MaxHistoryTokens int
}

var errIdleTimeout = errors.New("completion: idle timeout")

// Client issues streamed completions.
type Client struct {
	provider adapter.Provider
	cfg      Config
	counter  budget.Counter
	log      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithCounter sets the token counter used for history trimming.
func WithCounter(c budget.Counter) Option {
	return func(cl *Client) { cl.counter = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.log = logger.OrNop(l) }
}

// New creates a Client over provider.
func New(provider adapter.Provider, cfg Config, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		cfg:      cfg,
		counter:  budget.Approx{},
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Models returns the primary model followed by the fallbacks.
func (c *Client) Models() []string {
	out := make([]string, 0, 1+len(c.cfg.FallbackModels))
	if c.cfg.PrimaryModel != "" {
		out = append(out, c.cfg.PrimaryModel)
	}
	for _, m := range c.cfg.FallbackModels {
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

// Stream sends the request and calls onChunk with each piece of text in
// order. A model-not-found failure before any text moves on to the next
// model with the same messages. Any other failure, a failure after text
// was delivered, or running out of models is returned as an *adapter.Error. Cancelling ctx ends the stream with
// OutcomeAborted and a nil error, and onChunk is not called afterwards.
func (c *Client) Stream(ctx context.Context, req Request, onChunk func(text string)) (Result, error) {
	messages := c.BuildMessages(req)
	models := c.Models()
	if len(models) == 0 {
		return Result{}, fmt.Errorf("completion: no model configured")
	}

	var res Result
	for i, model := range models {
		if ctx.Err() != nil {
			return Result{Outcome: OutcomeAborted, Model: model, Attempts: i}, nil
		}

		var err error
		res, err = c.attempt(ctx, model, messages, onChunk)
		res.Attempts = i + 1
		if err == nil {
			return res, nil
		}

		// Text already handed to onChunk cannot be taken back, so a model
		// that fails after streaming ends the ladder.
		if adapter.IsKind(err, adapter.KindModelNotFound) && res.Content == "" && i < len(models)-1 {
			c.log.Warn("model not found, trying fallback", "model", model, "next", models[i+1])
			continue
		}
		c.log.Error("completion failed", "model", model, "kind", adapter.KindOf(err), "attempts", i+1, "error", err)
		return res, err
	}
	return res, nil
}

func (c *Client) attempt(ctx context.Context, model string, messages []adapter.Message, onChunk func(string)) (Result, error) {
	res := Result{Model: model}

	sctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var timer *time.Timer
	if c.cfg.IdleTimeout > 0 {
		timer = time.AfterFunc(c.cfg.IdleTimeout, func() { cancel(errIdleTimeout) })
		defer timer.Stop()
	}

	ch, err := c.provider.Stream(sctx, adapter.ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return c.interrupted(ctx, sctx, res, err)
	}

	var sb strings.Builder
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				if sctx.Err() != nil {
					res.Content = sb.String()
					return c.interrupted(ctx, sctx, res, nil)
				}
				res.Outcome = OutcomeComplete
				res.Content = sb.String()
				return res, nil
			}
			if sctx.Err() != nil {
				res.Content = sb.String()
				return c.interrupted(ctx, sctx, res, nil)
			}
			if chunk.Error != nil {
				res.Content = sb.String()
				return res, chunk.Error
			}
			if timer != nil {
				timer.Reset(c.cfg.IdleTimeout)
			}
			if chunk.Text == "" {
				continue
			}
			sb.WriteString(chunk.Text)
			if onChunk != nil {
				onChunk(chunk.Text)
			}

		case <-sctx.Done():
			res.Content = sb.String()
			return c.interrupted(ctx, sctx, res, nil)
		}
	}
}

// interrupted classifies a stream that stopped early: user cancellation
// is an abort, an idle timeout is an error, anything else keeps err.
func (c *Client) interrupted(ctx, sctx context.Context, res Result, err error) (Result, error) {
	if ctx.Err() != nil {
		res.Outcome = OutcomeAborted
		return res, nil
	}
	if errors.Is(context.Cause(sctx), errIdleTimeout) {
		return res, &adapter.Error{
			Kind:    adapter.KindTimeout,
			Model:   res.Model,
			Message: fmt.Sprintf("no response for %s", c.cfg.IdleTimeout),
			Err:     errIdleTimeout,
		}
	}
	if err == nil {
		err = &adapter.Error{Kind: adapter.KindTransport, Model: res.Model, Err: context.Cause(sctx)}
	}
	return res, err
}
