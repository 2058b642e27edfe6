// Package mcp provides an MCP (Model Context Protocol) server exposing the
// tape store, so agents can list, inspect and replay recorded dispatches.
package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/spool/pkg/resilience"
	"github.com/papercomputeco/spool/pkg/tape"
	"github.com/papercomputeco/spool/pkg/utils"
)

type Config struct {
	// Recorder is the tape store the tools read from.
	Recorder tape.Recorder

	// Policy parses frames during replay. Defaults to lenient production.
	Policy *resilience.Policy

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured slog logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the tape tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "spool",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Recorder == nil {
			return nil, errors.New("recorder is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}
		if s.config.Policy == nil {
			s.config.Policy = resilience.New(resilience.Config{}, c.Logger)
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        listToolName,
			Description: listDescription,
		}, s.handleListTapes)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        getToolName,
			Description: getDescription,
		}, s.handleGetTape)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        replayToolName,
			Description: replayDescription,
		}, s.handleReplayTape)
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// errorResult reports a tool failure to the client instead of failing the
// JSON-RPC call.
func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// jsonResult mirrors structured output as a JSON text block for clients
// that only read Content.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}, nil
}
