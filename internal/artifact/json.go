package artifact

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON decodes the JSON object carried by a generation result into v.
// Markdown code fences are stripped first; if that does not parse, the text
// between the first '{' and the last '}' is tried.
func ExtractJSON(text string, v interface{}) error {
	candidate := stripFences(text)
	err := json.Unmarshal([]byte(candidate), v)
	if err == nil {
		return nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("failed to decode JSON object: %w", err)
	}
	return nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```json"); i >= 0 {
		rest := text[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}
	return text
}
