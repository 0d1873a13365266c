package api

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/groundwork/internal/core/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ChatMessage is one conversation turn in a chat request.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages" validate:"required,min=1,dive"`
}

// Validate returns the failed fields, or nil.
func (r *ChatRequest) Validate() map[string]string {
	errs := validateStruct(r)
	if errs == nil {
		if _, ok := domain.LatestUserMessage(r.History()); !ok {
			errs = map[string]string{"messages": "must contain a user message"}
		}
	}
	return errs
}

// History converts the request into conversation turns.
func (r *ChatRequest) History() []domain.Message {
	history := make([]domain.Message, len(r.Messages))
	for i, m := range r.Messages {
		history[i] = domain.Message{Role: domain.Role(m.Role), Content: m.Content}
	}
	return history
}

// SearchParams are the query parameters of GET /api/search.
type SearchParams struct {
	Query         string   `query:"q" validate:"required"`
	Limit         int      `query:"limit" validate:"omitempty,min=1,max=100"`
	MinSimilarity *float64 `query:"min_similarity" validate:"omitempty,min=-1,max=1"`
	Dedupe        bool     `query:"dedupe"`
}

// Validate returns the failed fields, or nil.
func (p *SearchParams) Validate() map[string]string {
	p.Query = strings.TrimSpace(p.Query)
	return validateStruct(p)
}

// Options converts the parameters into retrieval options over defaults.
func (p *SearchParams) Options(defaults domain.RetrievalOptions) domain.RetrievalOptions {
	opts := defaults
	if p.Limit > 0 {
		opts.TopK = p.Limit
	}
	if p.MinSimilarity != nil {
		opts.MinSimilarity = *p.MinSimilarity
	}
	return opts
}

// SearchResponse is the body returned by GET /api/search.
type SearchResponse struct {
	Query     string                `json:"query"`
	Resources []domain.EvidenceItem `json:"resources"`
}

func validateStruct(v any) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	errs := make(map[string]string)
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs["request"] = err.Error()
		return errs
	}
	for _, e := range verrs {
		errs[fieldPath(e)] = fmt.Sprintf("failed on '%s' tag", e.Tag())
	}
	return errs
}

// fieldPath returns the namespace without the struct name, e.g. Messages[0].Role.
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}
