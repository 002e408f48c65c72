package extract

import (
	"encoding/json"
	"testing"
)

func TestExtractJSONObjectFenced(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "json fence",
			input: "Here you go:\n```json\n{\"a\": 1}\n```\nDone.",
			want:  `{"a": 1}`,
		},
		{
			name:  "bare fence",
			input: "```\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "no fence with prose",
			input: "The result is {\"a\": 1} as requested.",
			want:  `{"a": 1}`,
		},
		{
			name:  "bare object",
			input: `{"is_valid": true, "guidelines": []}`,
			want:  `{"is_valid": true, "guidelines": []}`,
		},
		{
			name:  "nested braces",
			input: "```json\n{\"outer\": {\"inner\": 2}}\n```",
			want:  `{"outer": {"inner": 2}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.input)
			if err != nil {
				t.Fatalf("ExtractJSONObject: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if !json.Valid([]byte(got)) {
				t.Errorf("extracted payload is not valid JSON: %q", got)
			}
		})
	}
}

func TestExtractJSONObjectNone(t *testing.T) {
	for _, input := range []string{"", "no object here", "broken } only close", "only open {"} {
		if _, err := ExtractJSONObject(input); err == nil {
			t.Errorf("ExtractJSONObject(%q): expected error", input)
		}
	}
}
