package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/agentwriter-backend/internal/data/repos"
	"github.com/yungbote/agentwriter-backend/internal/data/repos/testutil"
	types "github.com/yungbote/agentwriter-backend/internal/domain"
	"github.com/yungbote/agentwriter-backend/internal/jobs"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/jobs/queue"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/realtime"
)

type recordingEmitter struct {
	mu   sync.Mutex
	msgs []realtime.SSEMessage
}

func (e *recordingEmitter) Emit(_ context.Context, msg realtime.SSEMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.msgs = append(e.msgs, msg)
}

func (e *recordingEmitter) statuses(channel string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, m := range e.msgs {
		if m.Channel != channel {
			continue
		}
		if ev, ok := m.Data.(realtime.StatusChanged); ok {
			out = append(out, ev.Status)
		}
	}
	return out
}

type env struct {
	ctx      context.Context
	db       *gorm.DB
	repos    *repos.Repos
	emitter  *recordingEmitter
	tracker  StatusTracker
	registry *jobs.Registry
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	r := repos.New(db, log)
	em := &recordingEmitter{}
	reg := jobs.NewRegistry(r.JobRun, log)
	for _, name := range []string{contract.QueueContentPlanning, contract.QueueIdeasPlan, contract.QueueChunksSave} {
		_, err := reg.Declare(queue.Options{Name: name})
		require.NoError(t, err)
	}
	return &env{
		ctx:      context.Background(),
		db:       db,
		repos:    r,
		emitter:  em,
		tracker:  NewStatusTracker(db, r, em, log),
		registry: reg,
	}
}

func (e *env) dbc() dbctx.Context { return dbctx.Context{Ctx: e.ctx} }

func (e *env) waiting(t *testing.T, queueName string) int64 {
	t.Helper()
	counts, err := e.repos.JobRun.CountByState(e.dbc(), queueName)
	require.NoError(t, err)
	return counts["waiting"]
}

func (e *env) content(t *testing.T, id uuid.UUID) *types.Content {
	t.Helper()
	c, err := e.repos.Content.GetByID(e.dbc(), id)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}
