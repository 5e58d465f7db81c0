// Package asr dispatches buffered recordings to the transcription worker.
// The worker answers 202 and delivers the transcript later via callback;
// anything else is an orchestration failure.
package asr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/hakambing/GuardianCare/internal/circuitbreaker"
	"github.com/hakambing/GuardianCare/internal/domain"
)

const stage = "transcribe"

// Client submits transcription jobs.
type Client struct {
	baseURL string
	host    string
	http    *http.Client
	breaker *circuitbreaker.Breaker
}

func New(baseURL string, timeout time.Duration, breaker *circuitbreaker.Breaker) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing transcription worker url: %w", err)
	}
	return &Client{
		baseURL: baseURL,
		host:    u.Host,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
	}, nil
}

// Dispatch uploads the recording at audioPath together with the callback the
// worker must hit once transcription finishes. The caller's token rides along
// so the worker can authenticate the callback.
func (c *Client) Dispatch(ctx context.Context, audioPath, callbackURL, token string) error {
	if err := c.breaker.Allow(c.host); err != nil {
		return domain.Orchestration(stage, err)
	}

	body, contentType, err := buildForm(audioPath, callbackURL)
	if err != nil {
		return domain.Orchestration(stage, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", body)
	if err != nil {
		return domain.Orchestration(stage, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
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

// buildForm assembles the multipart body in memory. Recordings are short
// voice clips; streaming the form would complicate retries for no gain.
func buildForm(audioPath, callbackURL string) (io.Reader, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("opening recording: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copying recording into form: %w", err)
	}
	if err := w.WriteField("callback_url", callbackURL); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}

// IsOpenCircuit reports whether err is a dispatch shed by the breaker.
func IsOpenCircuit(err error) bool {
	return errors.Is(err, circuitbreaker.ErrOpen)
}
