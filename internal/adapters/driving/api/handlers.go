package api

import (
	"bufio"
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driving"
	"github.com/custodia-labs/groundwork/internal/logger"
	"github.com/custodia-labs/groundwork/internal/sse"
)

// ChatHandler streams answers as server-sent events.
type ChatHandler struct {
	answer driving.AnswerService
}

// NewChatHandler creates a chat handler.
func NewChatHandler(answer driving.AnswerService) *ChatHandler {
	return &ChatHandler{answer: answer}
}

// HandleChat validates the conversation and streams the answer. Once the
// stream has started the status is 200; failures arrive as the error fragment.
func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrBadRequest()
	}
	if errs := req.Validate(); len(errs) > 0 {
		return NewValidationError(errs)
	}
	history := req.History()

	c.Set(fiber.HeaderContentType, sse.ContentType)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// The writer runs after the handler returns; it must not touch c.
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		out := sse.NewWriter(w)
		events := h.answer.StreamAnswer(ctx, history)
		for ev := range events {
			if err := out.WriteEvent(ev); err != nil {
				logger.Debug("chat client went away: %v", err)
				cancel()
				drain(events)
				return
			}
		}
	}))
	return nil
}

// drain discards events until the streamer closes the channel.
func drain(events <-chan domain.Event) {
	for range events {
	}
}

// SearchHandler serves evidence search.
type SearchHandler struct {
	retriever driving.Retriever
	defaults  domain.RetrievalOptions
}

// NewSearchHandler creates a search handler. Requests without limit or
// min_similarity use defaults.
func NewSearchHandler(retriever driving.Retriever, defaults domain.RetrievalOptions) *SearchHandler {
	return &SearchHandler{retriever: retriever, defaults: defaults.Normalised()}
}

// HandleSearch returns ranked evidence for the q parameter.
func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	var params SearchParams
	if err := c.QueryParser(&params); err != nil {
		return NewError(fiber.StatusBadRequest, "invalid query parameters")
	}
	if errs := params.Validate(); len(errs) > 0 {
		return NewValidationError(errs)
	}

	items, err := h.retriever.Search(c.UserContext(), params.Query, params.Options(h.defaults))
	if err != nil {
		return err
	}
	if params.Dedupe {
		items = domain.DedupeBySource(items)
	}
	if items == nil {
		items = []domain.EvidenceItem{}
	}
	return c.JSON(SearchResponse{Query: params.Query, Resources: items})
}

// CheckHandler serves liveness checks.
type CheckHandler struct{}

// NewCheckHandler creates a check handler.
func NewCheckHandler() *CheckHandler {
	return &CheckHandler{}
}

// HandleHealthy reports that the server is up.
func (h CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"result": "ok"})
}
