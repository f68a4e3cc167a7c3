package format

import (
	"testing"

	"appframe/internal/request"
)

func TestSanitizeOutput_EscapesControlCharacters(t *testing.T) {
	tests := map[string]string{
		"plain text":    "plain text",
		"line\nbreak\t": "line\nbreak\t",
		"\x1b[31mred":   "\\x1b[31mred",
		"bell\x07":      "bell\\x07",
		"del\x7f":       "del\\x7f",
	}
	for in, want := range tests {
		if got := sanitizeOutput(in); got != want {
			t.Errorf("sanitizeOutput(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPrettyJSON_LeavesNonJSONAlone(t *testing.T) {
	if got := prettyJSON("not json"); got != "not json" {
		t.Fatalf("prettyJSON = %q", got)
	}
	if got := prettyJSON(`{"a":1}`); got != "{\n  \"a\": 1\n}" {
		t.Fatalf("prettyJSON = %q", got)
	}
}

func TestRenderBody(t *testing.T) {
	raw := &request.Response{Body: "<html>", Raw: true}
	if got := renderBody(raw); got != "<html>" {
		t.Fatalf("renderBody(raw) = %q", got)
	}

	decoded := &request.Response{Body: map[string]any{"id": "x"}}
	if got := renderBody(decoded); got != `{"id":"x"}` {
		t.Fatalf("renderBody(decoded) = %q", got)
	}

	if got := renderBody(&request.Response{}); got != "" {
		t.Fatalf("renderBody(empty) = %q", got)
	}
}
