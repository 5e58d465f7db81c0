package asr

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hakambing/GuardianCare/internal/circuitbreaker"
	"github.com/hakambing/GuardianCare/internal/domain"
)

func writeRecording(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkin.wav")
	if err := os.WriteFile(path, []byte("RIFF fake wav"), 0o644); err != nil {
		t.Fatalf("writing recording: %v", err)
	}
	return path
}

func newClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(baseURL, 5*time.Second, circuitbreaker.New(5, time.Minute))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestDispatch_SendsMultipartForm(t *testing.T) {
	var gotAuth, gotCallback, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transcribe" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		gotCallback = r.FormValue("callback_url")

		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("reading file part: %v", err)
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		gotFile = hdr.Filename + ":" + string(b)

		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	err := c.Dispatch(context.Background(), writeRecording(t), "http://checkin:6000/asr/callback/abc", "tok-123")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if gotAuth != "Bearer tok-123" {
		t.Errorf("bad auth header: %q", gotAuth)
	}
	if gotCallback != "http://checkin:6000/asr/callback/abc" {
		t.Errorf("bad callback_url: %q", gotCallback)
	}
	if gotFile != "checkin.wav:RIFF fake wav" {
		t.Errorf("bad file part: %q", gotFile)
	}
}

func TestDispatch_NonAcceptedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK) // 200 is wrong: the worker must accept, not complete
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	err := c.Dispatch(context.Background(), writeRecording(t), "http://cb", "tok")

	var oe *domain.OrchestrationError
	if !errors.As(err, &oe) {
		t.Fatalf("expected OrchestrationError, got %v", err)
	}
	if oe.Stage != "transcribe" {
		t.Errorf("expected transcribe stage, got %q", oe.Stage)
	}
}

func TestDispatch_MissingRecording(t *testing.T) {
	c := newClient(t, "http://asr-service:6001")
	err := c.Dispatch(context.Background(), filepath.Join(t.TempDir(), "gone.wav"), "http://cb", "tok")

	var oe *domain.OrchestrationError
	if !errors.As(err, &oe) {
		t.Fatalf("expected OrchestrationError, got %v", err)
	}
}

func TestDispatch_BreakerOpensAfterFailures(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(srv.URL, 5*time.Second, circuitbreaker.New(2, time.Minute))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := writeRecording(t)
	for i := 0; i < 2; i++ {
		if err := c.Dispatch(context.Background(), rec, "http://cb", "tok"); err == nil {
			t.Fatal("expected dispatch failure")
		}
	}

	// Third attempt is shed without touching the worker.
	err = c.Dispatch(context.Background(), rec, "http://cb", "tok")
	if !IsOpenCircuit(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if hits != 2 {
		t.Fatalf("breaker must shed the third attempt, worker saw %d", hits)
	}
}
