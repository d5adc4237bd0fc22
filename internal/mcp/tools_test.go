package mcp

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/personachat/personachat/internal/db"
	"github.com/personachat/personachat/internal/memory"
	"github.com/personachat/personachat/internal/persona"
)

func setupServer(t *testing.T) *Server {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := memory.NewStore(memory.NewSQLiteBackend(database))
	reg := persona.NewRegistry(persona.NewSQLiteRepository(database), "u1")
	return NewServer(store, reg, "u1", "test", nil)
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", res.Content[0])
	}
	return tc.Text
}

func TestRememberListForget(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()

	res, err := s.handleRemember(ctx, call(map[string]any{"content": "Alice", "category": "name"}))
	if err != nil || res.IsError {
		t.Fatalf("remember: %v %+v", err, res)
	}
	if got := text(t, res); got != "Remembered as NAME." {
		t.Errorf("got %q", got)
	}

	res, _ = s.handleRemember(ctx, call(map[string]any{"content": "alice", "category": "NAME"}))
	if got := text(t, res); got != "Already remembered." {
		t.Errorf("duplicate: %q", got)
	}

	_, _ = s.handleRemember(ctx, call(map[string]any{"content": "Allergic to peanuts"}))

	res, _ = s.handleListMemories(ctx, call(nil))
	if got := text(t, res); got != "1. [NAME] Alice\n2. [EXPLICIT] Allergic to peanuts\n" {
		t.Errorf("list: %q", got)
	}

	res, _ = s.handleForget(ctx, call(map[string]any{"index": float64(1)}))
	if res.IsError {
		t.Fatalf("forget: %s", text(t, res))
	}
	res, _ = s.handleListMemories(ctx, call(nil))
	if got := text(t, res); got != "1. [EXPLICIT] Allergic to peanuts\n" {
		t.Errorf("after forget: %q", got)
	}
}

func TestRemember_Invalid(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()

	tests := []map[string]any{
		{},
		{"content": "   "},
		{"content": "x", "category": "MOOD"},
	}
	for _, args := range tests {
		res, err := s.handleRemember(ctx, call(args))
		if err != nil {
			t.Fatal(err)
		}
		if !res.IsError {
			t.Errorf("args %v should fail", args)
		}
	}
}

func TestForget_OutOfRange(t *testing.T) {
	s := setupServer(t)
	for _, idx := range []int{0, 3} {
		res, _ := s.handleForget(context.Background(), call(map[string]any{"index": float64(idx)}))
		if !res.IsError {
			t.Errorf("index %d should fail", idx)
		}
	}
}

func TestLearnAndComposePrompt(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()

	res, _ := s.handleLearn(ctx, call(map[string]any{"text": "my name is Priya"}))
	if got := text(t, res); got != "Learned 1 new fact(s)." {
		t.Errorf("learn: %q", got)
	}

	res, _ = s.handleMemoryContext(ctx, call(nil))
	if got := text(t, res); !strings.HasPrefix(got, "Things you remember about this user:") || !strings.Contains(got, "Priya") {
		t.Errorf("context: %q", got)
	}

	res, _ = s.handleComposePrompt(ctx, call(map[string]any{"persona": "no-such-persona"}))
	got := text(t, res)
	corporate := persona.Builtins()[0]
	if !strings.HasPrefix(got, corporate.Prompt) || !strings.Contains(got, "USER'S NAME: Priya") {
		t.Errorf("compose: %q", got)
	}
}

func TestListPersonas(t *testing.T) {
	s := setupServer(t)
	res, _ := s.handleListPersonas(context.Background(), call(nil))
	got := text(t, res)
	if !strings.Contains(got, "corporate\t") || !strings.Contains(got, "sam\t") {
		t.Errorf("got %q", got)
	}
}

func TestMemoryContext_Empty(t *testing.T) {
	s := setupServer(t)
	res, _ := s.handleMemoryContext(context.Background(), call(nil))
	if got := text(t, res); got != "No memories stored." {
		t.Errorf("got %q", got)
	}
}
