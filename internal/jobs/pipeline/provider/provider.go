// Package provider classifies capability-provider failures for pipeline stages.
package provider

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
	"github.com/yungbote/agentwriter-backend/internal/platform/openai"
	"github.com/yungbote/agentwriter-backend/internal/platform/websearch"
)

// Err wraps a provider error with op and marks it permanent when no retry can
// fix it: empty answers, no results and client-side rejections.
func Err(op string, err error) error {
	if err == nil {
		return nil
	}
	err = fmt.Errorf("%s: %w", op, err)
	if errors.Is(err, openai.ErrEmptyOutput) || errors.Is(err, websearch.ErrNoResults) {
		return runtime.Permanent(err)
	}
	switch openai.StatusCode(err) {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity:
		return runtime.Permanent(err)
	}
	return err
}

// Degenerate is a provider answer that succeeded but cannot feed the next stage.
func Degenerate(format string, args ...any) error {
	return runtime.Permanent(fmt.Errorf("degenerate output: "+format, args...))
}
