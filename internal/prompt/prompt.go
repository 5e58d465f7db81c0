// Package prompt assembles the instruction sent to the language-model worker
// and the JSON schema that constrains its output.
package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// schemaJSON is the grammar handed to the inference worker. It mirrors
// domain.StructuredCheckIn exactly; any drift between the two surfaces as
// validation failures on the callback path.
const schemaJSON = `{
  "type": "object",
  "properties": {
    "summary": {"type": "string", "maxLength": 300},
    "priority": {"type": "integer", "minimum": 0, "maximum": 4},
    "mood": {"type": "integer", "minimum": -3, "maximum": 3},
    "status": {"type": "string", "maxLength": 30},
    "transcript": {"type": "string"}
  },
  "required": ["summary", "priority", "mood", "status", "transcript"],
  "additionalProperties": false
}`

// Builder renders check-in prompts from a system instruction loaded at startup.
type Builder struct {
	system string
}

// Load reads the system instruction from path. The instruction is operator
// content; a missing or empty file is a deployment error, not a runtime one.
func Load(path string) (*Builder, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading prompt instruction: %w", err)
	}
	system := strings.TrimSpace(string(b))
	if system == "" {
		return nil, fmt.Errorf("prompt instruction %s is empty", path)
	}
	return &Builder{system: system}, nil
}

// Render wraps the transcription in the worker's instruction framing.
func (b *Builder) Render(transcription string) string {
	return fmt.Sprintf("[INST]\n<<SYS>>\n%s\n<</SYS>>\nUser's transcription:\n%q\n[/INST]", b.system, transcription)
}

// Schema returns the output grammar for inference requests.
func (b *Builder) Schema() json.RawMessage {
	return json.RawMessage(schemaJSON)
}
