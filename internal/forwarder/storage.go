package forwarder

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

// StorageClient persists finished check-in records.
type StorageClient interface {
	Submit(ctx context.Context, rec domain.CheckInRecord, token string) error
}

// HTTPStorageClient talks to the check-in storage service.
type HTTPStorageClient struct {
	baseURL string
	host    string
	http    *http.Client
	breaker *circuitbreaker.Breaker
}

func NewHTTPStorageClient(baseURL string, timeout time.Duration, breaker *circuitbreaker.Breaker) (*HTTPStorageClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing storage service url: %w", err)
	}
	return &HTTPStorageClient{
		baseURL: baseURL,
		host:    u.Host,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
	}, nil
}

// Submit posts the record. The storage service signals success with any
// status below 300; it is synchronous, unlike the worker hops.
func (c *HTTPStorageClient) Submit(ctx context.Context, rec domain.CheckInRecord, token string) error {
	if err := c.breaker.Allow(c.host); err != nil {
		return domain.Orchestration(stageForward, err)
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return domain.Orchestration(stageForward, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/checkins", bytes.NewReader(body))
	if err != nil {
		return domain.Orchestration(stageForward, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure(c.host)
		return domain.Orchestration(stageForward, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		c.breaker.RecordFailure(c.host)
		return domain.Orchestration(stageForward, fmt.Errorf("storage answered %d", resp.StatusCode))
	}

	c.breaker.RecordSuccess(c.host)
	return nil
}
