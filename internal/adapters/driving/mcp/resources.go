package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for Groundwork resources.
	uriScheme = "groundwork://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "config",
		Name:        "config",
		Description: "Active models, store backend and retrieval settings",
		MIMEType:    "application/json",
	}, s.handleConfigResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "evidence/{query}",
		Name:        "evidence",
		Description: "Passages relevant to a URL-escaped query",
		MIMEType:    "application/json",
	}, s.handleEvidenceResource)
}

// configInfo is the public view of the settings. Secrets are never included.
type configInfo struct {
	EmbeddingProvider string  `json:"embedding_provider"`
	EmbeddingModel    string  `json:"embedding_model"`
	LLMProvider       string  `json:"llm_provider"`
	LLMModel          string  `json:"llm_model"`
	QueryStrategy     string  `json:"query_strategy"`
	StoreBackend      string  `json:"store_backend"`
	TopK              int     `json:"top_k"`
	MinSimilarity     float64 `json:"min_similarity"`
}

// handleConfigResource returns the active configuration.
func (s *Server) handleConfigResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Settings == nil {
		return jsonResult(req.Params.URI, struct{}{})
	}

	settings, err := s.ports.Settings.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	opts := settings.Retrieval.Options()
	return jsonResult(req.Params.URI, configInfo{
		EmbeddingProvider: string(settings.Embedding.Provider),
		EmbeddingModel:    settings.Embedding.Model,
		LLMProvider:       string(settings.LLM.Provider),
		LLMModel:          settings.LLM.Model,
		QueryStrategy:     string(settings.Query.Strategy),
		StoreBackend:      string(settings.Store.Backend),
		TopK:              opts.TopK,
		MinSimilarity:     opts.MinSimilarity,
	})
}

// handleEvidenceResource returns passages for the query in the URI.
func (s *Server) handleEvidenceResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	query := extractQuery(req.Params.URI)
	if query == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	items, err := s.ports.Retriever.FindRelevant(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("finding evidence: %w", err)
	}
	return jsonResult(req.Params.URI, evidenceOutputs(items))
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractQuery extracts the unescaped query from a URI like groundwork://evidence/{query}.
func extractQuery(uri string) string {
	const prefix = uriScheme + "evidence/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	query, err := url.PathUnescape(strings.TrimPrefix(uri, prefix))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(query)
}
