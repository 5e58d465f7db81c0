package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/hakambing/GuardianCare/internal/domain"
)

// submitText runs a text submission and returns the inference job id the
// pipeline is now waiting on.
func submitText(t *testing.T, f *fixture, text string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/mobile/text",
		[]byte(fmt.Sprintf(`{"text":%q}`, text)), "application/json")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submission: expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	return decodeBody(t, rec)["job_id"]
}

// submitStream runs a wearable stream-and-stop and returns the transcription
// job id.
func submitStream(t *testing.T, f *fixture) string {
	t.Helper()
	if rec := f.do(t, http.MethodPost, "/device/audio/stream", []byte{0x01, 0x00}, "application/octet-stream"); rec.Code != http.StatusOK {
		t.Fatalf("stream: expected 200, got %d", rec.Code)
	}
	rec := f.do(t, http.MethodPost, "/device/audio/stop", nil, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("stop: expected 202, got %d", rec.Code)
	}
	return decodeBody(t, rec)["job_id"]
}

func TestLLMCallback_ForwardsRecord(t *testing.T) {
	f := newFixture(t)
	jobID := submitText(t, f, "I feel fine today")

	inner := `{"summary":"User reports feeling fine","priority":0,"mood":2,"status":"ok","transcript":"I feel fine today"}`
	envelope := fmt.Sprintf(`{"content":%q}`, inner)

	rec := f.do(t, http.MethodPost, "/llm/callback/"+jobID, []byte(envelope), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if len(f.forwarder.forwards) != 1 {
		t.Fatalf("expected exactly one forward, got %d", len(f.forwarder.forwards))
	}
	got := f.forwarder.forwards[0]
	if !strings.HasPrefix(got, "elder-1:"+f.token+":") {
		t.Errorf("identity or token lost on forward: %q", got)
	}
	if !strings.Contains(got, inner) {
		t.Errorf("envelope not passed through intact: %q", got)
	}
}

func TestLLMCallback_DuplicateDeliveryConflicts(t *testing.T) {
	f := newFixture(t)
	jobID := submitText(t, f, "I feel fine today")

	envelope := []byte(`{"content":"{\"summary\":\"s\",\"priority\":1,\"mood\":0,\"status\":\"okay\",\"transcript\":\"t\"}"}`)

	if rec := f.do(t, http.MethodPost, "/llm/callback/"+jobID, envelope, "application/json"); rec.Code != http.StatusOK {
		t.Fatalf("first delivery: expected 200, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/llm/callback/"+jobID, envelope, "application/json"); rec.Code != http.StatusConflict {
		t.Fatalf("replayed delivery: expected 409, got %d", rec.Code)
	}
	if len(f.forwarder.forwards) != 1 {
		t.Fatalf("replay must not forward again, got %d forwards", len(f.forwarder.forwards))
	}
}

func TestLLMCallback_UnknownJob(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/llm/callback/00000000-0000-0000-0000-000000000001",
		[]byte(`{"content":"x"}`), "application/json")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for unknown job, got %d", rec.Code)
	}
}

func TestLLMCallback_MalformedJobID(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/llm/callback/not-a-uuid", []byte(`{"content":"x"}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed job id, got %d", rec.Code)
	}
}

func TestLLMCallback_ValidationFailure(t *testing.T) {
	f := newFixture(t)
	jobID := submitText(t, f, "hello")
	f.forwarder.err = &domain.ValidationError{Err: fmt.Errorf("priority out of range")}

	rec := f.do(t, http.MethodPost, "/llm/callback/"+jobID,
		[]byte(`{"content":"{\"priority\":7}"}`), "application/json")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestASRCallback_DispatchesInference(t *testing.T) {
	f := newFixture(t)
	asrJobID := submitStream(t, f)

	rec := f.do(t, http.MethodPost, "/asr/callback/"+asrJobID,
		[]byte(`{"transcription":"I had a good walk"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	reqs := f.llm.all()
	if len(reqs) != 1 {
		t.Fatalf("expected one inference dispatch, got %d", len(reqs))
	}
	if !strings.Contains(reqs[0].Prompt, `"I had a good walk"`) {
		t.Errorf("transcription missing from prompt: %s", reqs[0].Prompt)
	}
	if f.llm.tokens[0] != f.token {
		t.Errorf("token not carried across the hop: %q", f.llm.tokens[0])
	}

	nextID := decodeBody(t, rec)["job_id"]
	if nextID == asrJobID {
		t.Error("inference hop must get a fresh job id")
	}
	if want := "http://check-in-service:6000/llm/callback/" + nextID; reqs[0].Callback != want {
		t.Errorf("callback = %q, want %q", reqs[0].Callback, want)
	}
	if f.store.Len() != 1 {
		t.Fatalf("expected only the inference job pending, got %d", f.store.Len())
	}
}

func TestASRCallback_DuplicateDeliveryConflicts(t *testing.T) {
	f := newFixture(t)
	asrJobID := submitStream(t, f)

	body := []byte(`{"transcription":"hello"}`)
	if rec := f.do(t, http.MethodPost, "/asr/callback/"+asrJobID, body, "application/json"); rec.Code != http.StatusOK {
		t.Fatalf("first delivery: expected 200, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/asr/callback/"+asrJobID, body, "application/json"); rec.Code != http.StatusConflict {
		t.Fatalf("replayed delivery: expected 409, got %d", rec.Code)
	}
	if len(f.llm.all()) != 1 {
		t.Fatalf("replay must not dispatch inference again")
	}
}

func TestASRCallback_StageMismatchConflicts(t *testing.T) {
	f := newFixture(t)
	jobID := submitText(t, f, "seed") // text jobs wait on the inference stage

	rec := f.do(t, http.MethodPost, "/asr/callback/"+jobID,
		[]byte(`{"transcription":"hello"}`), "application/json")
	if rec.Code != http.StatusConflict {
		t.Fatalf("stage mismatch must conflict, got %d", rec.Code)
	}
	// The inference job must survive the mismatched callback.
	if f.store.Len() != 1 {
		t.Fatalf("pending inference job lost, store has %d", f.store.Len())
	}
}

func TestASRCallback_EmptyTranscription(t *testing.T) {
	f := newFixture(t)
	asrJobID := submitStream(t, f)

	rec := f.do(t, http.MethodPost, "/asr/callback/"+asrJobID,
		[]byte(`{"transcription":""}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty transcription, got %d", rec.Code)
	}
	if len(f.llm.all()) != 0 {
		t.Fatal("empty transcription must not reach inference")
	}
}

func TestASRCallback_InferenceDispatchFailure(t *testing.T) {
	f := newFixture(t)
	asrJobID := submitStream(t, f)
	f.llm.err = domain.Orchestration("infer", fmt.Errorf("worker answered 500, want 202"))

	rec := f.do(t, http.MethodPost, "/asr/callback/"+asrJobID,
		[]byte(`{"transcription":"hello"}`), "application/json")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("dispatch failure must surface to the callback issuer, got %d", rec.Code)
	}
	if f.store.Len() != 0 {
		t.Fatalf("failed hop must leave no pending job, store has %d", f.store.Len())
	}
}
