package ai

import (
	"errors"
	"testing"

	"github.com/matheus3301/tgtriage/internal/apperr"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "Here:\n```json\n[{\"a\":1}]\n```\nthanks", `[{"a":1}]`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"bare array", `The result is [1, 2] ok`, `[1, 2]`},
		{"bare object", `sure {"x": "y"} done`, `{"x": "y"}`},
		{"array wins over object", `[{"x":1},{"x":2}]`, `[{"x":1},{"x":2}]`},
		{"raw", "  nothing here  ", "nothing here"},
		{"unterminated fence falls through", "```json\n{\"a\":1}", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.in); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	type item struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	got, err := Decode[[]item]("test", "```json\n[{\"id\": 7, \"name\": \"a\"}]\n```")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != 7 || got[0].Name != "a" {
		t.Errorf("Decode() = %+v", got)
	}

	_, err = Decode[[]item]("test", "I could not find anything")
	if !errors.Is(err, apperr.ErrParseFailure) {
		t.Errorf("Decode(garbage) error = %v, want ParseFailure", err)
	}
	if !apperr.IsTerminal(err) {
		t.Error("parse failures must be terminal")
	}
}
