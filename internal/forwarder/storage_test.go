package forwarder

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hakambing/GuardianCare/internal/circuitbreaker"
	"github.com/hakambing/GuardianCare/internal/domain"
)

func TestHTTPStorageClient_Submit(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/checkins" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := NewHTTPStorageClient(srv.URL, 5*time.Second, circuitbreaker.New(5, time.Minute))
	if err != nil {
		t.Fatalf("NewHTTPStorageClient: %v", err)
	}

	rec := domain.EventRecord(domain.EventFall, "elder-1", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	if err := c.Submit(context.Background(), rec, "tok-123"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if gotAuth != "Bearer tok-123" {
		t.Errorf("bad auth header: %q", gotAuth)
	}
	if gotBody["elderly_id"] != "elder-1" {
		t.Errorf("bad elderly_id: %v", gotBody["elderly_id"])
	}
	if gotBody["transcript"] != nil {
		t.Errorf("event transcript must serialize as null, got %v", gotBody["transcript"])
	}
	if gotBody["created_at"] != "2024-03-01T12:00:00" {
		t.Errorf("bad created_at: %v", gotBody["created_at"])
	}
}

func TestHTTPStorageClient_AnySub300IsSuccess(t *testing.T) {
	for _, status := range []int{200, 201, 204} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		c, _ := NewHTTPStorageClient(srv.URL, 5*time.Second, circuitbreaker.New(5, time.Minute))
		if err := c.Submit(context.Background(), domain.CheckInRecord{}, "tok"); err != nil {
			t.Errorf("status %d must count as success: %v", status, err)
		}
		srv.Close()
	}
}

func TestHTTPStorageClient_FailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := NewHTTPStorageClient(srv.URL, 5*time.Second, circuitbreaker.New(5, time.Minute))
	err := c.Submit(context.Background(), domain.CheckInRecord{}, "tok")

	var oe *domain.OrchestrationError
	if !errors.As(err, &oe) {
		t.Fatalf("expected OrchestrationError, got %v", err)
	}
	if oe.Stage != "forward" {
		t.Errorf("expected forward stage, got %q", oe.Stage)
	}
}
