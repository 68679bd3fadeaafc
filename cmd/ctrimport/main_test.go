package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"ctr-asset-decoder/internal/importer"
	"ctr-asset-decoder/internal/logging"
)

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"":           "texture",
		"body_tex":   "body_tex",
		"a/b\\c:d*e": "a_b_c_d_e",
		`q?"<>|`:     "q_____",
	}
	for in, want := range tests {
		if got := safeName(in); got != want {
			t.Errorf("safeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTextureNamesCollisions(t *testing.T) {
	var buf bytes.Buffer
	logging.SetLogger(logging.NewText(&buf, slog.LevelWarn))
	defer logging.SetLogger(nil)

	images := []importer.Image{{Name: "a/b"}, {Name: "a:b"}, {Name: "a_b_1"}, {Name: "eye"}}
	got := textureNames("chr", images)
	want := []string{"a_b", "a_b_1", "a_b_1_1", "eye"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("name %d = %q, want %q", i, got[i], want[i])
		}
	}

	out := buf.String()
	if n := strings.Count(out, "texture name collision"); n != 2 {
		t.Errorf("got %d collision warnings, want 2:\n%s", n, out)
	}
	if !strings.Contains(out, "saved_as=a_b_1") {
		t.Errorf("warning does not name the saved file:\n%s", out)
	}
}
