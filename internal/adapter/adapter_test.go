package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNew_ValidProviders(t *testing.T) {
	for _, provider := range []string{ProviderOpenRouter, ProviderOpenAI, ProviderClaude, ProviderOllama} {
		t.Run(provider, func(t *testing.T) {
			p, err := New(provider, Options{APIKey: "test-key"})
			if err != nil {
				t.Fatalf("New(%q) error: %v", provider, err)
			}
			if p.Name() != provider {
				t.Errorf("Name() = %q, want %q", p.Name(), provider)
			}
		})
	}
}

func TestNew_InvalidProvider(t *testing.T) {
	if _, err := New("gemini", Options{}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

// collect drains a stream into its text and the first error seen.
func collect(t *testing.T, ch <-chan StreamChunk) (string, error) {
	t.Helper()
	var sb strings.Builder
	var firstErr error
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				return sb.String(), firstErr
			}
			if c.Error != nil && firstErr == nil {
				firstErr = c.Error
			}
			sb.WriteString(c.Text)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func sseServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenRouter_StreamsContent(t *testing.T) {
	var gotBody openRouterRequest
	var gotHeaders http.Header

	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, ": OPENROUTER PROCESSING\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		flusher.Flush()
		// A payload split across two writes.
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":")
		flusher.Flush()
		fmt.Fprint(w, "{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: {not json}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"!\"}}]}\r\n\r\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ignored\"}}]}\n\n")
	})

	p := NewOpenRouter(Options{APIKey: "k", BaseURL: srv.URL, Referer: "http://localhost", Title: "personachat"})
	ch, err := p.Stream(context.Background(), ChatRequest{
		Model:       "m1",
		Messages:    []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "hi"}},
		Temperature: 0.8,
		MaxTokens:   1000,
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	text, streamErr := collect(t, ch)
	if streamErr != nil {
		t.Fatalf("stream error: %v", streamErr)
	}
	if text != "Hello!" {
		t.Errorf("text: got %q, want %q", text, "Hello!")
	}

	if gotHeaders.Get("Authorization") != "Bearer k" {
		t.Errorf("authorization: %q", gotHeaders.Get("Authorization"))
	}
	if gotHeaders.Get("HTTP-Referer") != "http://localhost" || gotHeaders.Get("X-Title") != "personachat" {
		t.Errorf("attribution headers: %v", gotHeaders)
	}
	if gotBody.Model != "m1" || !gotBody.Stream || gotBody.MaxTokens != 1000 || gotBody.Temperature != 0.8 {
		t.Errorf("request body: %+v", gotBody)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != RoleSystem {
		t.Errorf("messages: %+v", gotBody.Messages)
	}
}

func TestOpenRouter_StatusErrors(t *testing.T) {
	tests := []struct {
		status  int
		body    string
		kind    ErrorKind
		userMsg string
	}{
		{401, `{"error":{"message":"No auth credentials found","code":401}}`, KindAuth, "Invalid API key. Please check your API key configuration."},
		{429, `{"error":{"message":"slow down","code":429}}`, KindRateLimit, "Rate limit exceeded. Please wait a moment and try again."},
		{400, `{"error":{"message":"messages is required","code":400}}`, KindBadRequest, "Bad request: messages is required"},
		{404, `{"error":{"message":"No endpoints found for m1","code":404}}`, KindModelNotFound, "Model not found: No endpoints found for m1. Please check if the model is available."},
		{502, `upstream exploded`, KindTransport, "upstream exploded"},
		{500, ``, KindTransport, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			p := NewOpenRouter(Options{BaseURL: srv.URL})
			_, err := p.Stream(context.Background(), ChatRequest{Model: "m1"})
			if err == nil {
				t.Fatal("expected error")
			}
			if KindOf(err) != tt.kind {
				t.Errorf("kind: got %q, want %q", KindOf(err), tt.kind)
			}
			ae := err.(*Error)
			if ae.StatusCode != tt.status {
				t.Errorf("status: got %d", ae.StatusCode)
			}
			if ae.UserMessage() != tt.userMsg {
				t.Errorf("user message: got %q, want %q", ae.UserMessage(), tt.userMsg)
			}
		})
	}
}

func TestOpenRouter_MidStreamError(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"provider overloaded\",\"code\":502}}\n\n")
	})
	p := NewOpenRouter(Options{BaseURL: srv.URL})
	ch, err := p.Stream(context.Background(), ChatRequest{Model: "m1"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	text, streamErr := collect(t, ch)
	if text != "partial" {
		t.Errorf("text: %q", text)
	}
	if !IsKind(streamErr, KindTransport) {
		t.Errorf("expected transport error, got %v", streamErr)
	}
}

func TestOpenRouter_CancelClosesStream(t *testing.T) {
	release := make(chan struct{})
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	p := NewOpenRouter(Options{BaseURL: srv.URL})
	ch, err := p.Stream(ctx, ChatRequest{Model: "m1"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	first := <-ch
	if first.Text != "first" {
		t.Fatalf("first chunk: %+v", first)
	}
	cancel()
	if _, streamErr := collect(t, ch); streamErr != nil {
		t.Errorf("cancellation should not surface an error chunk, got %v", streamErr)
	}
}

func TestOllama_StreamsNDJSON(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path: %s", r.URL.Path)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Hi "},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"there"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	})
	p := NewOllama(Options{BaseURL: srv.URL})
	ch, err := p.Stream(context.Background(), ChatRequest{Model: "llama3.2"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	text, streamErr := collect(t, ch)
	if streamErr != nil || text != "Hi there" {
		t.Errorf("got %q, %v", text, streamErr)
	}
}

func TestOllama_MissingModel(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"model 'nope' not found"}`)
	})
	p := NewOllama(Options{BaseURL: srv.URL})
	_, err := p.Stream(context.Background(), ChatRequest{Model: "nope"})
	if !IsKind(err, KindModelNotFound) {
		t.Fatalf("expected model_not_found, got %v", err)
	}
	if !strings.Contains(err.(*Error).Message, "model 'nope' not found") {
		t.Errorf("message: %q", err.(*Error).Message)
	}
}

func TestOpenAI_StreamsContent(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hey\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	p := NewOpenAI(Options{APIKey: "k", BaseURL: srv.URL})
	ch, err := p.Stream(context.Background(), ChatRequest{Model: "gpt-4o-mini", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	text, streamErr := collect(t, ch)
	if streamErr != nil || text != "Hey" {
		t.Errorf("got %q, %v", text, streamErr)
	}
}

func TestOpenAI_ModelNotFound(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"message":"The model does not exist","type":"invalid_request_error","code":"model_not_found"}}`)
	})
	p := NewOpenAI(Options{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Stream(context.Background(), ChatRequest{Model: "nope"})
	if !IsKind(err, KindModelNotFound) {
		t.Fatalf("expected model_not_found, got %v", err)
	}
}

func TestErrorMessage_Shapes(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"error":{"message":"nested"}}`, "nested"},
		{`{"error":"plain"}`, "plain"},
		{`{"message":"top"}`, "top"},
		{`{"unrelated":true}`, "Bad Request"},
		{`oops`, "oops"},
	}
	for _, tt := range tests {
		if got := errorMessage(http.StatusBadRequest, []byte(tt.body)); got != tt.want {
			t.Errorf("errorMessage(%s) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
