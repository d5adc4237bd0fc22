package completion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/personachat/personachat/internal/adapter"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// script describes how the fake provider behaves for one model.
type script struct {
	err    error
	chunks []string
	fail   error // sent as an Error chunk after the text chunks
	block  bool  // hold the stream open until ctx is done
}

type fakeProvider struct {
	mu       sync.Mutex
	scripts  map[string]script
	calls    []string
	requests []adapter.ChatRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Stream(ctx context.Context, req adapter.ChatRequest) (<-chan adapter.StreamChunk, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Model)
	f.requests = append(f.requests, req)
	s := f.scripts[req.Model]
	f.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	ch := make(chan adapter.StreamChunk, len(s.chunks)+1)
	go func() {
		defer close(ch)
		for _, text := range s.chunks {
			select {
			case ch <- adapter.StreamChunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}
		if s.fail != nil {
			select {
			case ch <- adapter.StreamChunk{Error: s.fail}:
			case <-ctx.Done():
			}
			return
		}
		if s.block {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

func (f *fakeProvider) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func notFound(model string) error {
	return &adapter.Error{Kind: adapter.KindModelNotFound, StatusCode: 404, Model: model, Message: "no such model"}
}

func ladderConfig() Config {
	return Config{
		PrimaryModel:   "primary",
		FallbackModels: []string{"fb1", "fb2", "fb3"},
		IdleTimeout:    5 * time.Second,
	}
}

func TestStream_CompletesOnPrimary(t *testing.T) {
	p := &fakeProvider{scripts: map[string]script{
		"primary": {chunks: []string{"Hel", "lo", "!"}},
	}}
	c := New(p, ladderConfig())

	var got []string
	res, err := c.Stream(context.Background(), Request{SystemPrompt: "sys"}, func(s string) { got = append(got, s) })
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if res.Outcome != OutcomeComplete || res.Content != "Hello!" || res.Model != "primary" || res.Attempts != 1 {
		t.Errorf("result: %+v", res)
	}
	if strings.Join(got, "|") != "Hel|lo|!" {
		t.Errorf("chunks applied out of order: %v", got)
	}
}

func TestStream_FallsBackOnModelNotFound(t *testing.T) {
	p := &fakeProvider{scripts: map[string]script{
		"primary": {err: notFound("primary")},
		"fb1":     {err: notFound("fb1")},
		"fb2":     {chunks: []string{"ok"}},
	}}
	c := New(p, ladderConfig())

	res, err := c.Stream(context.Background(), Request{
		SystemPrompt: "sys",
		History:      []Turn{{Role: adapter.RoleUser, Content: "hi"}},
	}, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if res.Model != "fb2" || res.Attempts != 3 || res.Content != "ok" {
		t.Errorf("result: %+v", res)
	}
	if calls := strings.Join(p.Calls(), ","); calls != "primary,fb1,fb2" {
		t.Errorf("calls: %s", calls)
	}

	// Every attempt carries the same messages.
	for i, req := range p.requests {
		if len(req.Messages) != 2 || req.Messages[1].Content != "hi" {
			t.Errorf("attempt %d messages: %+v", i, req.Messages)
		}
	}
}

func TestStream_LadderExhausted(t *testing.T) {
	p := &fakeProvider{scripts: map[string]script{
		"primary": {err: notFound("primary")},
		"fb1":     {err: notFound("fb1")},
		"fb2":     {err: notFound("fb2")},
		"fb3":     {err: notFound("fb3")},
	}}
	c := New(p, ladderConfig())

	res, err := c.Stream(context.Background(), Request{}, nil)
	if !adapter.IsKind(err, adapter.KindModelNotFound) {
		t.Fatalf("expected model_not_found, got %v", err)
	}
	if len(p.Calls()) != 4 {
		t.Errorf("attempts: got %d, want 4", len(p.Calls()))
	}
	if res.Attempts != 4 {
		t.Errorf("result attempts: got %d", res.Attempts)
	}
}

func TestStream_OtherErrorsDoNotFallBack(t *testing.T) {
	tests := []struct {
		name string
		kind adapter.ErrorKind
	}{
		{"auth", adapter.KindAuth},
		{"rate limit", adapter.KindRateLimit},
		{"bad request", adapter.KindBadRequest},
		{"transport", adapter.KindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{scripts: map[string]script{
				"primary": {err: &adapter.Error{Kind: tt.kind}},
			}}
			c := New(p, ladderConfig())
			_, err := c.Stream(context.Background(), Request{}, nil)
			if !adapter.IsKind(err, tt.kind) {
				t.Errorf("got %v, want kind %s", err, tt.kind)
			}
			if len(p.Calls()) != 1 {
				t.Errorf("calls: %v", p.Calls())
			}
		})
	}
}

func TestStream_MidStreamErrorKeepsPartial(t *testing.T) {
	p := &fakeProvider{scripts: map[string]script{
		"primary": {chunks: []string{"par", "tial"}, fail: &adapter.Error{Kind: adapter.KindTransport, Message: "boom"}},
	}}
	c := New(p, ladderConfig())

	res, err := c.Stream(context.Background(), Request{}, nil)
	if !adapter.IsKind(err, adapter.KindTransport) {
		t.Fatalf("got %v", err)
	}
	if res.Content != "partial" {
		t.Errorf("content: %q", res.Content)
	}
	if len(p.Calls()) != 1 {
		t.Errorf("a mid-stream failure must not fall back: %v", p.Calls())
	}
}

func TestStream_MidStreamNotFoundAfterTextIsTerminal(t *testing.T) {
	p := &fakeProvider{scripts: map[string]script{
		"a": {chunks: []string{"Hello from A. "}, fail: notFound("a")},
		"b": {chunks: []string{"Hello from B."}},
	}}
	c := New(p, Config{PrimaryModel: "a", FallbackModels: []string{"b"}, IdleTimeout: 5 * time.Second})

	var applied strings.Builder
	res, err := c.Stream(context.Background(), Request{}, func(s string) { applied.WriteString(s) })
	if !adapter.IsKind(err, adapter.KindModelNotFound) {
		t.Fatalf("got err %v, want model not found", err)
	}
	if res.Attempts != 1 || res.Model != "a" {
		t.Errorf("result: %+v", res)
	}
	if calls := p.Calls(); len(calls) != 1 || calls[0] != "a" {
		t.Errorf("fell back after streaming text: %v", calls)
	}
	if applied.String() != "Hello from A. " || res.Content != "Hello from A. " {
		t.Errorf("applied %q, content %q", applied.String(), res.Content)
	}
}

func TestStream_NotFoundChunkBeforeTextFallsBack(t *testing.T) {
	p := &fakeProvider{scripts: map[string]script{
		"a": {fail: notFound("a")},
		"b": {chunks: []string{"Hello from B."}},
	}}
	c := New(p, Config{PrimaryModel: "a", FallbackModels: []string{"b"}, IdleTimeout: 5 * time.Second})

	res, err := c.Stream(context.Background(), Request{}, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if res.Outcome != OutcomeComplete || res.Model != "b" || res.Attempts != 2 || res.Content != "Hello from B." {
		t.Errorf("result: %+v", res)
	}
}

func TestStream_CancelMidStream(t *testing.T) {
	p := &fakeProvider{scripts: map[string]script{
		"primary": {chunks: []string{"Hel", "lo"}, block: true},
	}}
	c := New(p, ladderConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var applied []string
	res, err := c.Stream(ctx, Request{}, func(s string) {
		applied = append(applied, s)
		cancel()
	})
	if err != nil {
		t.Fatalf("cancellation must not be an error: %v", err)
	}
	if res.Outcome != OutcomeAborted {
		t.Errorf("outcome: %s", res.Outcome)
	}
	if res.Content != "Hel" || len(applied) != 1 {
		t.Errorf("chunks after cancel were applied: content %q, applied %v", res.Content, applied)
	}
}

func TestStream_CancelBeforeFirstChunk(t *testing.T) {
	p := &fakeProvider{scripts: map[string]script{
		"primary": {block: true},
	}}
	c := New(p, ladderConfig())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	res, err := c.Stream(ctx, Request{}, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if res.Outcome != OutcomeAborted || res.Content != "" {
		t.Errorf("result: %+v", res)
	}
}

func TestStream_AlreadyCancelled(t *testing.T) {
	p := &fakeProvider{scripts: map[string]script{}}
	c := New(p, ladderConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := c.Stream(ctx, Request{}, nil)
	if err != nil || res.Outcome != OutcomeAborted {
		t.Errorf("got %+v, %v", res, err)
	}
	if len(p.Calls()) != 0 {
		t.Errorf("provider called after cancellation: %v", p.Calls())
	}
}

func TestStream_IdleTimeout(t *testing.T) {
	p := &fakeProvider{scripts: map[string]script{
		"primary": {chunks: []string{"slow"}, block: true},
	}}
	cfg := ladderConfig()
	cfg.IdleTimeout = 30 * time.Millisecond
	c := New(p, cfg)

	res, err := c.Stream(context.Background(), Request{}, nil)
	if !adapter.IsKind(err, adapter.KindTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	var ae *adapter.Error
	if !errors.As(err, &ae) || ae.UserMessage() != "The response timed out. Please try again." {
		t.Errorf("user message: %v", err)
	}
	if res.Content != "slow" {
		t.Errorf("partial content: %q", res.Content)
	}
	if len(p.Calls()) != 1 {
		t.Errorf("timeouts must not fall back: %v", p.Calls())
	}
}

func TestStream_NoModels(t *testing.T) {
	c := New(&fakeProvider{}, Config{})
	if _, err := c.Stream(context.Background(), Request{}, nil); err == nil {
		t.Error("expected error with no models configured")
	}
}
