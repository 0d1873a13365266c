package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/groundwork/internal/core/domain"
)

var errAnswerFailed = errors.New("answer generation failed")

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query         string  `json:"query" jsonschema:"the search query to find passages"`
	Limit         int     `json:"limit,omitempty" jsonschema:"maximum number of passages to return (default 8)"`
	MinSimilarity float64 `json:"min_similarity,omitempty" jsonschema:"cosine similarity floor between -1 and 1 (default 0.55)"`
	Dedupe        bool    `json:"dedupe,omitempty" jsonschema:"keep only the best passage per source"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []EvidenceOutput `json:"results"`
	Count   int              `json:"count"`
}

// EvidenceOutput is a single retrieved passage.
type EvidenceOutput struct {
	SourceURL  string  `json:"source_url"`
	Similarity float64 `json:"similarity"`
	Content    string  `json:"content"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the indexed corpus"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	// Answer carries [n] markers; n is the 1-based index into Resources.
	Answer    string           `json:"answer"`
	Resources []EvidenceOutput `json:"resources"`
	Citations int              `json:"citations"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Find indexed passages semantically similar to a query",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed corpus, with citations",
	}, s.handleAsk)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	opts := domain.RetrievalOptions{TopK: input.Limit, MinSimilarity: input.MinSimilarity}
	items, err := s.ports.Retriever.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	if input.Dedupe {
		items = domain.DedupeBySource(items)
	}

	output := SearchOutput{
		Results: evidenceOutputs(items),
		Count:   len(items),
	}
	return nil, output, nil
}

// handleAsk streams an answer for a single question and returns it folded.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, AskOutput{}, domain.ErrEmptyQuery
	}

	history := []domain.Message{{Role: domain.RoleUser, Content: question}}
	var (
		answer  domain.Answer
		failure error
	)
	for ev := range s.ports.Answer.StreamAnswer(ctx, history) {
		if text, ok := ev.(domain.TextEvent); ok && text.Err != nil {
			failure = text.Err
		}
		answer = answer.Apply(ev)
	}
	if err := ctx.Err(); err != nil {
		return nil, AskOutput{}, err
	}
	if answer.Failed {
		if failure == nil {
			failure = errAnswerFailed
		}
		return nil, AskOutput{}, failure
	}

	output := AskOutput{
		Answer:    numberedCitations(answer),
		Resources: evidenceOutputs(answer.Evidence),
		Citations: len(answer.Citations),
	}
	return nil, output, nil
}

func evidenceOutputs(items []domain.EvidenceItem) []EvidenceOutput {
	out := make([]EvidenceOutput, len(items))
	for i, item := range items {
		out[i] = EvidenceOutput{
			SourceURL:  item.SourceURL,
			Similarity: item.Similarity,
			Content:    item.Content,
		}
	}
	return out
}

// numberedCitations renders the answer text with a [n] marker at each citation.
func numberedCitations(a domain.Answer) string {
	var b strings.Builder
	last := 0
	for _, mark := range a.Citations {
		offset := min(max(mark.Offset, last), len(a.Text))
		b.WriteString(a.Text[last:offset])
		fmt.Fprintf(&b, "[%d]", mark.Citation.DocumentIndex+1)
		last = offset
	}
	b.WriteString(a.Text[last:])
	return b.String()
}
