package prompt

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeInstruction(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompt.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing instruction: %v", err)
	}
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.md")); err == nil {
		t.Fatal("expected error for missing instruction file")
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeInstruction(t, "  \n\t ")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty instruction file")
	}
}

func TestRender_Framing(t *testing.T) {
	path := writeInstruction(t, "You are a caregiver assistant.\n")
	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := b.Render("I feel fine today")

	if !strings.HasPrefix(got, "[INST]\n<<SYS>>\nYou are a caregiver assistant.\n<</SYS>>\n") {
		t.Errorf("bad prompt prefix:\n%s", got)
	}
	if !strings.HasSuffix(got, "\n[/INST]") {
		t.Errorf("bad prompt suffix:\n%s", got)
	}
	if !strings.Contains(got, `"I feel fine today"`) {
		t.Errorf("transcription must be quoted in the prompt:\n%s", got)
	}
}

func TestRender_EscapesTranscription(t *testing.T) {
	b, err := Load(writeInstruction(t, "sys"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := b.Render("line one\nline \"two\"")
	if !strings.Contains(got, `"line one\nline \"two\""`) {
		t.Errorf("transcription must be escaped, got:\n%s", got)
	}
}

func TestSchema_Shape(t *testing.T) {
	b, err := Load(writeInstruction(t, "sys"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var schema struct {
		Type                 string                     `json:"type"`
		Properties           map[string]json.RawMessage `json:"properties"`
		Required             []string                   `json:"required"`
		AdditionalProperties bool                       `json:"additionalProperties"`
	}
	if err := json.Unmarshal(b.Schema(), &schema); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}

	if schema.Type != "object" {
		t.Errorf("expected object schema, got %q", schema.Type)
	}
	if schema.AdditionalProperties {
		t.Error("schema must reject unknown fields")
	}
	for _, field := range []string{"summary", "priority", "mood", "status", "transcript"} {
		if _, ok := schema.Properties[field]; !ok {
			t.Errorf("schema missing property %q", field)
		}
	}
	if len(schema.Required) != 5 {
		t.Errorf("expected all 5 fields required, got %v", schema.Required)
	}
}
