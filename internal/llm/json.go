package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/newthinker/argus/internal/core"
)

// ExtractJSON returns the outermost JSON object in content, tolerating
// markdown fences and leading or trailing prose.
func ExtractJSON(content string) (string, error) {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", core.Errorf(core.ErrLLMFailed, "no JSON object in response")
	}
	return s[start : end+1], nil
}

// DecodeJSON extracts the JSON object in content and unmarshals it into out.
func DecodeJSON(content string, out any) error {
	raw, err := ExtractJSON(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return core.WrapError(core.ErrLLMFailed, fmt.Errorf("decoding JSON response: %w", err))
	}
	return nil
}
