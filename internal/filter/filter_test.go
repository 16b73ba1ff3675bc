package filter

import (
	"strings"
	"testing"
)

func TestApply(t *testing.T) {
	frame := `{"event":"message","message":{"id":5,"text":"hello","author":{"name":"ana"}}}`

	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{
			name:  "empty query pretty-prints",
			query: "",
			want:  `"event": "message"`,
		},
		{
			name:  "field selection",
			query: "message.text",
			want:  `"hello"`,
		},
		{
			name:  "nested selection",
			query: "message.author.name",
			want:  `"ana"`,
		},
		{
			name:  "missing field yields null",
			query: "message.missing",
			want:  "null",
		},
		{
			name:    "invalid expression",
			query:   "message.[",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(frame, tt.query)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Apply failed: %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("result %q does not contain %q", got, tt.want)
			}
		})
	}
}

func TestApply_InvalidJSON(t *testing.T) {
	if _, err := Apply("not json", "a.b"); err == nil {
		t.Error("expected an error for invalid JSON")
	}
}

func TestIsValidJMESPath(t *testing.T) {
	if !IsValidJMESPath("message.text") {
		t.Error("valid expression rejected")
	}
	if IsValidJMESPath("message.[") {
		t.Error("invalid expression accepted")
	}
}
