package mcp

import (
	"github.com/custodia-labs/groundwork/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
type Ports struct {
	// Retriever serves the search tool and evidence resources.
	Retriever driving.Retriever

	// Answer serves the ask tool.
	Answer driving.AnswerService

	// Settings exposes the active configuration. Optional.
	Settings driving.SettingsService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrMissingPorts
	}
	if p.Retriever == nil {
		return ErrMissingRetriever
	}
	if p.Answer == nil {
		return ErrMissingAnswer
	}
	return nil
}
