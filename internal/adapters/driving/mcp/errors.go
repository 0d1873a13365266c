// Package mcp provides an MCP (Model Context Protocol) server adapter for Groundwork.
// It lets AI assistants search the indexed corpus and ask grounded questions.
package mcp

import "errors"

// Errors returned by NewServer.
var (
	ErrMissingPorts     = errors.New("mcp: ports are required")
	ErrMissingRetriever = errors.New("mcp: retriever is required")
	ErrMissingAnswer    = errors.New("mcp: answer service is required")
)
