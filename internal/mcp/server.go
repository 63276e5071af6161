// Package mcp exposes hookwatch's memory store and rule engine as MCP
// tools over stdio, so an agent can read and write durable notes and
// pre-check text against the same rules the watcher applies.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/hookwatch/internal/memory"
	"github.com/ppiankov/hookwatch/internal/rules"
)

// Config holds MCP server configuration.
type Config struct {
	// MemoryPath is the SQLite store location. Empty uses the default
	// under the state directory.
	MemoryPath string
	// RulesPath is an optional rules config overlay.
	RulesPath string
	// StateDir anchors MemoryPath when it is empty.
	StateDir string
}

// Server wraps the MCP SDK server with hookwatch's store and rules.
type Server struct {
	mcpServer *mcpsdk.Server
	store     *memory.Store
	engine    *rules.Engine
}

// New creates an MCP server with an open memory store and a loaded rule
// engine.
func New(cfg Config) (*Server, error) {
	path := cfg.MemoryPath
	if path == "" {
		path = memory.DefaultPath(cfg.StateDir)
	}
	store, err := memory.Open(path)
	if err != nil {
		return nil, err
	}

	engine, err := rules.Load(cfg.RulesPath)
	if err != nil {
		store.Close()
		return nil, err
	}

	s := &Server{store: store, engine: engine}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "hookwatch",
			Version: "0.1.0",
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close releases the memory store.
func (s *Server) Close() error {
	return s.store.Close()
}

// registerTools adds all hookwatch tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "memory_write",
		Description: "Store a durable note under a key. Overwrites an existing note with the same key.",
	}, s.handleMemoryWrite)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "memory_read",
		Description: "Read the note stored under a key.",
	}, s.handleMemoryRead)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "memory_search",
		Description: "Search notes by substring over keys, values, and tags.",
	}, s.handleMemorySearch)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "memory_list",
		Description: "List stored notes, newest first.",
	}, s.handleMemoryList)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "memory_delete",
		Description: "Delete the note stored under a key.",
	}, s.handleMemoryDelete)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "memory_prune",
		Description: "Delete notes not updated within the given age (e.g. 720h).",
	}, s.handleMemoryPrune)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "classify",
		Description: "Run hookwatch's rule engine over a piece of text and return the detected issues.",
	}, s.handleClassify)
}
