// Package llm dispatches rendered prompts to the inference worker. Like the
// transcription hop, the worker answers 202 and posts the completion back to
// the service later.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hakambing/GuardianCare/internal/circuitbreaker"
	"github.com/hakambing/GuardianCare/internal/domain"
)

const stage = "infer"

// Request is the inference worker's wire shape. Streaming is always off: the
// completion arrives whole through the callback.
type Request struct {
	Prompt     string          `json:"prompt"`
	NPredict   int             `json:"n_predict"`
	Stream     bool            `json:"stream"`
	JSONSchema json.RawMessage `json:"json_schema"`
	Callback   string          `json:"callback"`
}

// Client submits inference jobs.
type Client struct {
	baseURL string
	host    string
	http    *http.Client
	breaker *circuitbreaker.Breaker
}

func New(baseURL string, timeout time.Duration, breaker *circuitbreaker.Breaker) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing inference worker url: %w", err)
	}
	return &Client{
		baseURL: baseURL,
		host:    u.Host,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
	}, nil
}

// Dispatch submits req and requires the worker to acknowledge with 202.
func (c *Client) Dispatch(ctx context.Context, req Request, token string) error {
	if err := c.breaker.Allow(c.host); err != nil {
		return domain.Orchestration(stage, err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return domain.Orchestration(stage, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/answer/callback", bytes.NewReader(body))
	if err != nil {
		return domain.Orchestration(stage, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.breaker.RecordFailure(c.host)
		return domain.Orchestration(stage, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusAccepted {
		c.breaker.RecordFailure(c.host)
		return domain.Orchestration(stage, fmt.Errorf("worker answered %d, want 202", resp.StatusCode))
	}

	c.breaker.RecordSuccess(c.host)
	return nil
}
