package services

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/agentwriter-backend/internal/data/repos/testutil"
	"github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
)

func TestCreateQueuesPlanning(t *testing.T) {
	e := newEnv(t)
	svc := NewContentService(e.db, e.repos, e.tracker, e.registry, testutil.Logger(t))
	userID := uuid.New()
	agent := testutil.SeedAgent(t, e.ctx, e.db, userID)

	c, err := svc.Create(e.ctx, userID, agent.ID, CreateContentRequest{Description: " Explain OAuth ", Layout: content.LayoutArticle})
	require.NoError(t, err)
	assert.Equal(t, content.StatusPending, c.Status)
	assert.Equal(t, 1, c.Run)
	assert.Equal(t, "Explain OAuth", c.Description)
	assert.Equal(t, []string{"pending"}, e.emitter.statuses(c.ID.String()))

	job, err := e.repos.JobRun.GetByKey(e.dbc(), contract.QueueContentPlanning, contract.JobKey(contract.QueueContentPlanning, c.ID, 1))
	require.NoError(t, err)
	require.NotNil(t, job)
	var p contract.PlanningPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	require.NoError(t, p.Validate())
	assert.Equal(t, agent.Purpose, p.Persona.Purpose)
	require.NotNil(t, p.EditorUserID)
	assert.Equal(t, userID, *p.EditorUserID)
}

func TestCreateValidatesBeforeWriting(t *testing.T) {
	e := newEnv(t)
	svc := NewContentService(e.db, e.repos, e.tracker, e.registry, testutil.Logger(t))
	userID := uuid.New()
	agent := testutil.SeedAgent(t, e.ctx, e.db, userID)

	_, err := svc.Create(e.ctx, userID, agent.ID, CreateContentRequest{Description: "  ", Layout: content.LayoutArticle})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Create(e.ctx, userID, agent.ID, CreateContentRequest{Description: "x", Layout: "poem"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Create(e.ctx, uuid.New(), agent.ID, CreateContentRequest{Description: "x", Layout: content.LayoutArticle})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Create(e.ctx, userID, uuid.New(), CreateContentRequest{Description: "x", Layout: content.LayoutArticle})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, e.db.Model(agent).Update("purpose", "").Error)
	_, err = svc.Create(e.ctx, userID, agent.ID, CreateContentRequest{Description: "x", Layout: content.LayoutArticle})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Zero(t, e.waiting(t, contract.QueueContentPlanning))
}

func TestRegenerateBumpsRun(t *testing.T) {
	e := newEnv(t)
	svc := NewContentService(e.db, e.repos, e.tracker, e.registry, testutil.Logger(t))
	agent := testutil.SeedAgent(t, e.ctx, e.db, uuid.New())
	failed := testutil.SeedContent(t, e.ctx, e.db, agent, content.LayoutTutorial, content.StatusFailed)
	live := testutil.SeedContent(t, e.ctx, e.db, agent, content.LayoutTutorial, content.StatusWriting)

	got, err := svc.Regenerate(e.ctx, agent.UserID, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Run)
	stored := e.content(t, failed.ID)
	assert.Equal(t, content.StatusPending, stored.Status)
	assert.Equal(t, 2, stored.Run)

	job, err := e.repos.JobRun.GetByKey(e.dbc(), contract.QueueContentPlanning, contract.JobKey(contract.QueueContentPlanning, failed.ID, 2))
	require.NoError(t, err)
	assert.NotNil(t, job)

	_, err = svc.Regenerate(e.ctx, agent.UserID, live.ID)
	assert.ErrorIs(t, err, content.ErrInvalidTransition)
	_, err = svc.Regenerate(e.ctx, uuid.New(), failed.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestApproveOnlyFromDraft(t *testing.T) {
	e := newEnv(t)
	svc := NewContentService(e.db, e.repos, e.tracker, e.registry, testutil.Logger(t))
	agent := testutil.SeedAgent(t, e.ctx, e.db, uuid.New())
	draft := testutil.SeedContent(t, e.ctx, e.db, agent, content.LayoutArticle, content.StatusDraft)
	writing := testutil.SeedContent(t, e.ctx, e.db, agent, content.LayoutArticle, content.StatusWriting)

	got, err := svc.Approve(e.ctx, agent.UserID, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusApproved, got.Status)
	assert.Equal(t, content.StatusApproved, e.content(t, draft.ID).Status)

	_, err = svc.Approve(e.ctx, agent.UserID, writing.ID)
	assert.ErrorIs(t, err, content.ErrInvalidTransition)
}

func TestSaveEditAppendsGaplessVersions(t *testing.T) {
	e := newEnv(t)
	svc := NewContentService(e.db, e.repos, e.tracker, e.registry, testutil.Logger(t))
	agent := testutil.SeedAgent(t, e.ctx, e.db, uuid.New())
	c := testutil.SeedContent(t, e.ctx, e.db, agent, content.LayoutArticle, content.StatusDraft)

	v1, err := svc.SaveEdit(e.ctx, agent.UserID, c.ID, "# OAuth\n\nFirst take.\n")
	require.NoError(t, err)
	require.NotNil(t, v1)
	assert.Equal(t, 1, v1.Version)
	assert.Contains(t, v1.Diff, "+First take.")

	v2, err := svc.SaveEdit(e.ctx, agent.UserID, c.ID, "# OAuth\n\nSecond take.\n")
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	var ops []LineOp
	require.NoError(t, json.Unmarshal(v2.LineDiff, &ops))
	require.NotEmpty(t, ops)
	assert.Equal(t, "equal", ops[0].Op)

	// Unchanged body writes nothing.
	same, err := svc.SaveEdit(e.ctx, agent.UserID, c.ID, "# OAuth\n\nSecond take.\n")
	require.NoError(t, err)
	assert.Nil(t, same)

	got := e.content(t, c.ID)
	assert.Equal(t, 2, got.CurrentVersion)
	versions, err := svc.Versions(e.ctx, agent.UserID, c.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	writing := testutil.SeedContent(t, e.ctx, e.db, agent, content.LayoutArticle, content.StatusWriting)
	_, err = svc.SaveEdit(e.ctx, agent.UserID, writing.ID, "body")
	assert.ErrorIs(t, err, content.ErrInvalidTransition)
}

func TestBodyDiffOpcodes(t *testing.T) {
	unified, ops, err := BodyDiff("", "a\nb\n", 0, 1)
	require.NoError(t, err)
	assert.Contains(t, unified, "+++ v1")
	// difflib keeps a trailing empty line on both sides.
	require.Len(t, ops, 2)
	assert.Equal(t, LineOp{Op: "insert", FromStart: 0, FromEnd: 0, ToStart: 0, ToEnd: 2}, ops[0])
	assert.Equal(t, "equal", ops[1].Op)
}
