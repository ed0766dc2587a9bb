package errors

import (
	"errors"
	"testing"
)

func TestInvalidf(t *testing.T) {
	err := Invalidf("layout %q is not supported", "poem")
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if got := err.Error(); got != `invalid argument: layout "poem" is not supported` {
		t.Fatalf("unexpected message %q", got)
	}
}
