package api

import (
	"errors"

	"github.com/custodia-labs/groundwork/internal/core/ports/driving"
)

// Errors returned by NewServer.
var (
	ErrMissingAnswerService = errors.New("answer service is required")
	ErrMissingRetriever     = errors.New("retriever is required")
	ErrMissingPorts         = errors.New("ports are required")
)

// Ports aggregates the driving ports served over HTTP.
type Ports struct {
	// Answer streams chat answers.
	Answer driving.AnswerService

	// Retriever serves evidence search.
	Retriever driving.Retriever
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrMissingPorts
	}
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	if p.Retriever == nil {
		return ErrMissingRetriever
	}
	return nil
}
