package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/custodia-labs/groundwork/internal/core/domain"
)

// Client posts conversations to a chat endpoint and reads the event stream.
type Client struct {
	http *http.Client
}

// NewClient creates a client. A nil httpClient uses one without a timeout,
// since streams are bounded by the server and by ctx.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{http: httpClient}
}

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	Messages []domain.Message `json:"messages"`
}

// Stream posts messages to url and returns the decoded events. An error is
// returned when the request cannot be made or is rejected. A stream that
// breaks after it started ends with the error fragment, so consumers fold
// it like a server-side failure. The channel is closed when the stream ends
// or ctx is cancelled.
func (c *Client) Stream(ctx context.Context, url string, messages []domain.Message) (<-chan domain.Event, error) {
	body, err := json.Marshal(chatRequest{Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", ContentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("chat endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	out := make(chan domain.Event)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		reader := NewReader(resp.Body)
		for {
			ev, err := reader.Next()
			if errors.Is(err, io.EOF) || (err != nil && ctx.Err() != nil) {
				return
			}
			if err != nil {
				ev = domain.TextEvent{Text: domain.ErrorFragment, Err: fmt.Errorf("read stream: %w", err)}
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	return out, nil
}
