package envutil

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_DURATION", "90s")
	if got := Duration("ENVUTIL_TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Fatalf("duration string: want=90s got=%s", got)
	}
	t.Setenv("ENVUTIL_TEST_DURATION", "15")
	if got := Duration("ENVUTIL_TEST_DURATION", time.Minute); got != 15*time.Second {
		t.Fatalf("bare seconds: want=15s got=%s", got)
	}
	t.Setenv("ENVUTIL_TEST_DURATION", "soon")
	if got := Duration("ENVUTIL_TEST_DURATION", time.Minute); got != time.Minute {
		t.Fatalf("invalid falls back: want=1m got=%s", got)
	}
}

func TestBoolAndInt(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_BOOL", "on")
	if !Bool("ENVUTIL_TEST_BOOL", false) {
		t.Fatalf("expected on to parse as true")
	}
	t.Setenv("ENVUTIL_TEST_BOOL", "maybe")
	if Bool("ENVUTIL_TEST_BOOL", false) {
		t.Fatalf("expected unknown value to fall back to default")
	}
	t.Setenv("ENVUTIL_TEST_INT", "x")
	if got := Int("ENVUTIL_TEST_INT", 4); got != 4 {
		t.Fatalf("int fallback: want=4 got=%d", got)
	}
}
