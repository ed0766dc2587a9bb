package promptstyle

import (
	"strings"
	"testing"
)

func TestApplySystemIsIdempotent(t *testing.T) {
	once := ApplySystem("Write an outline.", "text")
	if !strings.HasPrefix(once, marker) || !strings.HasSuffix(once, "Write an outline.") {
		t.Fatalf("unexpected prompt %q", once)
	}
	if twice := ApplySystem(once, "text"); twice != once {
		t.Fatalf("second application changed the prompt")
	}
	if !strings.Contains(ApplySystem("Plan keywords.", "json"), "single JSON object") {
		t.Fatalf("json mode guidance missing")
	}
	if ApplySystem("   ", "json") != "" {
		t.Fatalf("empty prompts stay empty")
	}
}
