package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/personachat/personachat/internal/memory"
)

func (s *Server) handleRemember(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil || strings.TrimSpace(content) == "" {
		return mcp.NewToolResultError("missing required parameter: content"), nil
	}

	cat := memory.CategoryExplicit
	if raw := req.GetString("category", ""); raw != "" {
		parsed, ok := memory.ParseCategory(raw)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("invalid category %q", raw)), nil
		}
		cat = parsed
	}

	added, err := s.store.Add(ctx, s.userID, memory.Fact{Category: cat, Text: content})
	switch {
	case err != nil:
		return mcp.NewToolResultError(fmt.Sprintf("failed to store fact: %v", err)), nil
	case !added:
		return mcp.NewToolResultText("Already remembered."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Remembered as %s.", cat)), nil
}

func (s *Server) handleLearn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}
	n := s.store.Learn(ctx, s.userID, text)
	return mcp.NewToolResultText(fmt.Sprintf("Learned %d new fact(s).", n)), nil
}

func (s *Server) handleForget(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index := req.GetInt("index", 0)
	if index < 1 {
		return mcp.NewToolResultError("index must be 1 or greater"), nil
	}
	if err := s.store.Remove(ctx, s.userID, index-1); err != nil {
		if errors.Is(err, memory.ErrIndexOutOfRange) {
			return mcp.NewToolResultError(fmt.Sprintf("no fact at position %d", index)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete fact: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Fact %d deleted.", index)), nil
}

func (s *Server) handleListMemories(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	facts, err := s.store.Facts(ctx, s.userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list facts: %v", err)), nil
	}
	if len(facts) == 0 {
		return mcp.NewToolResultText("No memories stored."), nil
	}

	var sb strings.Builder
	for i, f := range facts {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, f.Category, f.Text)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleMemoryContext(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	block, err := s.store.Context(ctx, s.userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to build context: %v", err)), nil
	}
	if block == "" {
		return mcp.NewToolResultText("No memories stored."), nil
	}
	return mcp.NewToolResultText(strings.TrimLeft(block, "\n")), nil
}

func (s *Server) handleComposePrompt(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	facts, err := s.store.Facts(ctx, s.userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load facts: %v", err)), nil
	}
	id := req.GetString("persona", "")
	return mcp.NewToolResultText(s.personas.ComposePrompt(ctx, id, facts)), nil
}

func (s *Server) handleListPersonas(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ps, err := s.personas.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list personas: %v", err)), nil
	}
	var sb strings.Builder
	for _, p := range ps {
		fmt.Fprintf(&sb, "%s\t%s (%s)", p.ID, p.Name, p.Kind)
		if p.Description != "" {
			sb.WriteString(" - " + p.Description)
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}
