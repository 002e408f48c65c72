package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// jsonFenceRe matches a JSON object wrapped in a markdown code fence.
var jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")

// ExtractJSONObject pulls a JSON object out of free-form model output.
// Handles markdown code fences and leading/trailing prose; returns an
// error when no object can be located. It does not validate the JSON —
// callers unmarshal and report syntax errors themselves.
func ExtractJSONObject(text string) (string, error) {
	if m := jsonFenceRe.FindStringSubmatch(text); m != nil {
		return m[1], nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object found in model output (%d bytes)", len(text))
	}
	return text[start : end+1], nil
}
