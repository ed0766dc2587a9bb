package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/agentwriter-backend/internal/data/repos/testutil"
	"github.com/yungbote/agentwriter-backend/internal/domain/content"
)

func TestSetStatusPersistsThenEmits(t *testing.T) {
	e := newEnv(t)
	agent := testutil.SeedAgent(t, e.ctx, e.db, uuid.New())
	c := testutil.SeedContent(t, e.ctx, e.db, agent, content.LayoutArticle, content.StatusPending)

	require.NoError(t, e.tracker.SetStatus(e.ctx, ContentRef(c), string(content.StatusPlanning), ""))
	assert.Equal(t, content.StatusPlanning, e.content(t, c.ID).Status)
	assert.Equal(t, []string{"planning"}, e.emitter.statuses(c.ID.String()))
	assert.Equal(t, []string{"planning"}, e.emitter.statuses(agent.UserID.String()))

	// Re-setting the same status is accepted and re-emits.
	require.NoError(t, e.tracker.SetStatus(e.ctx, ContentRef(c), string(content.StatusPlanning), ""))
	assert.Len(t, e.emitter.statuses(c.ID.String()), 2)
}

func TestSetStatusRejectsIllegalAndStaleWrites(t *testing.T) {
	e := newEnv(t)
	agent := testutil.SeedAgent(t, e.ctx, e.db, uuid.New())
	c := testutil.SeedContent(t, e.ctx, e.db, agent, content.LayoutArticle, content.StatusWriting)

	err := e.tracker.SetStatus(e.ctx, ContentRef(c), string(content.StatusPlanning), "")
	assert.ErrorIs(t, err, content.ErrInvalidTransition)

	stale := ContentRef(c)
	stale.Run = 7
	err = e.tracker.SetStatus(e.ctx, stale, string(content.StatusEditing), "")
	assert.ErrorIs(t, err, content.ErrInvalidTransition)

	assert.Equal(t, content.StatusWriting, e.content(t, c.ID).Status)
	assert.Empty(t, e.emitter.statuses(c.ID.String()))
}

func TestCommitRollsBackWithoutEmitting(t *testing.T) {
	e := newEnv(t)
	agent := testutil.SeedAgent(t, e.ctx, e.db, uuid.New())
	c := testutil.SeedContent(t, e.ctx, e.db, agent, content.LayoutArticle, content.StatusAnalyzing)

	boom := errors.New("disk full")
	err := e.tracker.Commit(e.ctx, ContentRef(c), string(content.StatusDraft), "", func(tx *gorm.DB) error {
		if err := tx.Model(&content.Content{}).Where("id = ?", c.ID).Update("body", "# Draft").Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got := e.content(t, c.ID)
	assert.Equal(t, content.StatusAnalyzing, got.Status)
	assert.Empty(t, got.Body)
	assert.Empty(t, e.emitter.statuses(c.ID.String()))

	err = e.tracker.Commit(e.ctx, ContentRef(c), string(content.StatusDraft), "", func(tx *gorm.DB) error {
		return tx.Model(&content.Content{}).Where("id = ?", c.ID).Update("body", "# Draft").Error
	})
	require.NoError(t, err)
	got = e.content(t, c.ID)
	assert.Equal(t, content.StatusDraft, got.Status)
	assert.Equal(t, "# Draft", got.Body)
	assert.Equal(t, []string{"draft"}, e.emitter.statuses(c.ID.String()))
}

func TestFailedMessageIsStored(t *testing.T) {
	e := newEnv(t)
	agent := testutil.SeedAgent(t, e.ctx, e.db, uuid.New())
	c := testutil.SeedContent(t, e.ctx, e.db, agent, content.LayoutArticle, content.StatusResearching)

	require.NoError(t, e.tracker.SetStatus(e.ctx, ContentRef(c), string(content.StatusFailed), "content generation failed"))
	got := e.content(t, c.ID)
	assert.Equal(t, content.StatusFailed, got.Status)
	assert.Equal(t, "content generation failed", got.ErrorMessage)
}
