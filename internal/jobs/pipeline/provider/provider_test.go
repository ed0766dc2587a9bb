package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
	"github.com/yungbote/agentwriter-backend/internal/platform/openai"
	"github.com/yungbote/agentwriter-backend/internal/platform/websearch"
)

func TestErrClassification(t *testing.T) {
	assert.True(t, runtime.IsPermanent(Err("search", websearch.ErrNoResults)))
	assert.True(t, runtime.IsPermanent(Err("write", openai.ErrEmptyOutput)))
	assert.False(t, runtime.IsPermanent(Err("write", context.DeadlineExceeded)))
	assert.ErrorIs(t, Err("write", context.DeadlineExceeded), context.DeadlineExceeded)
	assert.Nil(t, Err("noop", nil))
}

func TestDegenerateIsPermanent(t *testing.T) {
	err := Degenerate("got %d ideas", 0)
	assert.True(t, runtime.IsPermanent(err))
	assert.Contains(t, err.Error(), "got 0 ideas")
	assert.False(t, errors.Is(err, context.Canceled))
}
