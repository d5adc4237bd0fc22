// Package mcp exposes personachat memory and prompt composition over the
// Model Context Protocol so other assistants can share what was learned
// about the user.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/personachat/personachat/internal/logger"
	"github.com/personachat/personachat/internal/memory"
	"github.com/personachat/personachat/internal/persona"
)

// Server holds the stores the tools operate on.
type Server struct {
	store    *memory.Store
	personas *persona.Registry
	userID   string
	log      *slog.Logger
	mcp      *server.MCPServer
}

// NewServer registers every tool on a new MCP server.
func NewServer(store *memory.Store, personas *persona.Registry, userID, version string, log *slog.Logger) *Server {
	s := &Server{
		store:    store,
		personas: personas,
		userID:   userID,
		log:      logger.OrNop(log),
		mcp:      server.NewMCPServer("personachat", version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool("remember",
		mcp.WithDescription("Store a fact about the user. Duplicates are ignored; the oldest fact is dropped beyond the cap."),
		mcp.WithString("content", mcp.Required(), mcp.Description("The fact to remember")),
		mcp.WithString("category", mcp.Description("EXPLICIT (default), NAME, AGE, LOCATION, JOB, INTEREST, PREFERENCE, FAMILY, SKILL, GOAL or FOR_REFERENCE")),
	), s.handleRemember)

	s.mcp.AddTool(mcp.NewTool("learn",
		mcp.WithDescription("Extract facts from a message the user wrote and store any that are new."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The user's message")),
	), s.handleLearn)

	s.mcp.AddTool(mcp.NewTool("forget",
		mcp.WithDescription("Delete a remembered fact by its position in list_memories."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("1-based position of the fact")),
	), s.handleForget)

	s.mcp.AddTool(mcp.NewTool("list_memories",
		mcp.WithDescription("List remembered facts, oldest first."),
	), s.handleListMemories)

	s.mcp.AddTool(mcp.NewTool("memory_context",
		mcp.WithDescription("Get the memory block to append to a system prompt."),
	), s.handleMemoryContext)

	s.mcp.AddTool(mcp.NewTool("compose_prompt",
		mcp.WithDescription("Compose the full system prompt for a persona, including memories."),
		mcp.WithString("persona", mcp.Description("Persona id; unknown ids use the default persona")),
	), s.handleComposePrompt)

	s.mcp.AddTool(mcp.NewTool("list_personas",
		mcp.WithDescription("List the available personas."),
	), s.handleListPersonas)

	return s
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	s.log.Debug("mcp server listening on stdio")
	return server.ServeStdio(s.mcp)
}
