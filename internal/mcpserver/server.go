// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the entry index and staged-edit operations for LLM integration
// via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/halvard/munin/internal/engine"
	"github.com/halvard/munin/internal/index"
	"github.com/halvard/munin/internal/models"
)

// Server wraps the MCP server with Munin tools.
type Server struct {
	mcp *server.MCPServer
	eng *engine.Engine
	db  *index.DB
}

// New creates an MCP server with all tools registered.
func New(eng *engine.Engine, db *index.DB) *Server {
	s := &Server{eng: eng, db: db}

	s.mcp = server.NewMCPServer(
		"Munin",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_entries",
		mcp.WithDescription("Full-text search across note text, titles, and labels."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchEntries)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full Markdown text of a note."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Entry key, e.g. owner/repo:folder/Title.md")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_entries",
		mcp.WithDescription("List entries in canonical order, optionally filtered by kind."),
		mcp.WithString("kind", mcp.Description("Optional kind filter: note, document, or link")),
	), s.listEntries)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes whose text references the given link target."),
		mcp.WithString("target", mcp.Required(), mcp.Description("Link target URL")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Stage a new Markdown note. The edit is local until committed."),
		mcp.WithString("repo", mcp.Required(), mcp.Description("Repo key, e.g. owner/repo")),
		mcp.WithString("location", mcp.Description("Folder within the repo (empty for root)")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title; slashes are allowed")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown text")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Stage replacement text for an existing note. The edit is local until committed."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Entry key of the note")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New Markdown text")),
	), s.updateNote)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.db.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.eng.Entry(key)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", key)), nil
	}
	nc, ok := entry.Content.(*models.NoteContent)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not a note: %s", key)), nil
	}
	return mcp.NewToolResultText(nc.Text), nil
}

func (s *Server) listEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := ""
	if k, err := req.RequireString("kind"); err == nil {
		kind = k
	}
	rows, _, err := s.db.ListEntries(0, 0, kind)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var lines []string
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", row.Kind, row.Key, row.Title))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sources, err := s.db.Backlinks(target)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(sources) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(sources, "\n")), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, err := req.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	location := ""
	if l, lerr := req.RequireString("location"); lerr == nil {
		location = l
	}

	entry, err := s.eng.CreateNote(models.RepoKey(repo), location, title, content, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("staged: %s", entry.Key)), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.eng.UpdateNote(key, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("staged: %s", entry.Key)), nil
}
