package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/agentwriter-backend/internal/data/repos/testutil"
	types "github.com/yungbote/agentwriter-backend/internal/domain"
	jobstate "github.com/yungbote/agentwriter-backend/internal/domain/jobs"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/pkg/pointers"
)

func newJob(queue string, runAfter time.Time) *types.JobRun {
	return &types.JobRun{
		ID:          uuid.New(),
		Queue:       queue,
		OwnerUserID: uuid.New(),
		EntityType:  "content",
		EntityID:    pointers.Ptr(uuid.New()),
		MaxAttempts: 3,
		Payload:     datatypes.JSON([]byte("{}")),
		RunAfter:    runAfter,
	}
}

func TestJobRunRepoClaimOrderAndGuards(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	older := newJob("content.planning", now.Add(-2*time.Minute))
	newer := newJob("content.planning", now.Add(-1*time.Minute))
	future := newJob("content.planning", now.Add(time.Hour))
	otherQueue := newJob("content.writing", now.Add(-time.Hour))

	if _, err := repo.Create(dbc, []*types.JobRun{newer, older, future, otherQueue}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	claim1, err := repo.ClaimNext(dbc, "content.planning")
	if err != nil {
		t.Fatalf("ClaimNext #1: %v", err)
	}
	if claim1 == nil || claim1.ID != older.ID {
		t.Fatalf("ClaimNext #1: expected %v got %v", older.ID, claim1)
	}
	if claim1.State != jobstate.StateActive || claim1.Attempts != 1 || claim1.StartedAt == nil {
		t.Fatalf("ClaimNext #1: unexpected claimed row %+v", claim1)
	}

	claim2, err := repo.ClaimNext(dbc, "content.planning")
	if err != nil || claim2 == nil || claim2.ID != newer.ID {
		t.Fatalf("ClaimNext #2: expected %v got %v (err=%v)", newer.ID, claim2, err)
	}

	claim3, err := repo.ClaimNext(dbc, "content.planning")
	if err != nil {
		t.Fatalf("ClaimNext #3: %v", err)
	}
	if claim3 != nil {
		t.Fatalf("ClaimNext #3: future job must not be claimed, got %v", claim3.ID)
	}

	// A stale attempt number cannot finish the job.
	ok, err := repo.Complete(dbc, claim1.ID, claim1.Attempts+1, nil)
	if err != nil || ok {
		t.Fatalf("Complete with wrong attempt: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Complete(dbc, claim1.ID, claim1.Attempts, []byte(`{"next":"content.researching"}`))
	if err != nil || !ok {
		t.Fatalf("Complete: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Fail(dbc, claim1.ID, claim1.Attempts, "late failure")
	if err != nil || ok {
		t.Fatalf("Fail after completion must be a no-op: ok=%v err=%v", ok, err)
	}

	retryAt := time.Now().UTC().Add(-time.Second)
	ok, err = repo.Retry(dbc, claim2.ID, claim2.Attempts, "provider timeout", retryAt)
	if err != nil || !ok {
		t.Fatalf("Retry: ok=%v err=%v", ok, err)
	}
	again, err := repo.ClaimNext(dbc, "content.planning")
	if err != nil || again == nil || again.ID != newer.ID {
		t.Fatalf("reclaim after retry: expected %v got %v (err=%v)", newer.ID, again, err)
	}
	if again.Attempts != 2 {
		t.Fatalf("reclaim after retry: expected attempt 2, got %d", again.Attempts)
	}
	if err := repo.Heartbeat(dbc, again.ID, again.Attempts); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	counts, err := repo.CountByState(dbc, "content.planning")
	if err != nil {
		t.Fatalf("CountByState: %v", err)
	}
	if counts[jobstate.StateCompleted] != 1 || counts[jobstate.StateActive] != 1 || counts[jobstate.StateWaiting] != 1 {
		t.Fatalf("CountByState: unexpected %v", counts)
	}
}

func TestJobRunRepoKeyDedupe(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	first := newJob("content.writing", time.Now().UTC())
	first.JobKey = pointers.String("content.writing:c1:1")
	created, err := repo.Create(dbc, []*types.JobRun{first})
	if err != nil || len(created) != 1 {
		t.Fatalf("Create first: %v", err)
	}

	dup := newJob("content.writing", time.Now().UTC())
	dup.JobKey = pointers.String("content.writing:c1:1")
	created, err = repo.Create(dbc, []*types.JobRun{dup})
	if err != nil {
		t.Fatalf("Create dup: %v", err)
	}
	if len(created) != 1 || created[0].ID != first.ID {
		t.Fatalf("Create dup: expected existing %v, got %+v", first.ID, created)
	}

	got, err := repo.GetByKey(dbc, "content.writing", "content.writing:c1:1")
	if err != nil || got == nil || got.ID != first.ID {
		t.Fatalf("GetByKey: %v %v", got, err)
	}

	sameKeyOtherQueue := newJob("content.editing", time.Now().UTC())
	sameKeyOtherQueue.JobKey = pointers.String("content.writing:c1:1")
	created, err = repo.Create(dbc, []*types.JobRun{sameKeyOtherQueue})
	if err != nil || created[0].ID != sameKeyOtherQueue.ID {
		t.Fatalf("keys are scoped per queue: %v %v", created, err)
	}
}

func TestJobRunRepoStaleSweeps(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	stuck := newJob("content.research", now.Add(-time.Hour))
	if _, err := repo.Create(dbc, []*types.JobRun{stuck}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	claimed, err := repo.ClaimNext(dbc, "content.research")
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: %v %v", claimed, err)
	}

	list, err := repo.ListActiveStartedBefore(dbc, "content.research", now.Add(time.Minute))
	if err != nil || len(list) != 1 {
		t.Fatalf("ListActiveStartedBefore: %v %v", list, err)
	}
	list, err = repo.ListActiveStartedBefore(dbc, "content.research", now.Add(-time.Minute))
	if err != nil || len(list) != 0 {
		t.Fatalf("ListActiveStartedBefore (fresh): %v %v", list, err)
	}

	old := newJob("content.research", now.Add(-3*time.Hour))
	fresh := newJob("content.research", now)
	if _, err := repo.Create(dbc, []*types.JobRun{old, fresh}); err != nil {
		t.Fatalf("Create waiting: %v", err)
	}
	expired, err := repo.ListWaitingBefore(dbc, "content.research", now.Add(-2*time.Hour))
	if err != nil || len(expired) != 1 || expired[0].ID != old.ID {
		t.Fatalf("ListWaitingBefore: %v %v", expired, err)
	}
	ok, err := repo.DeleteWaiting(dbc, old.ID, old.Attempts+1)
	if err != nil || ok {
		t.Fatalf("DeleteWaiting with stale attempt must not apply: ok=%v err=%v", ok, err)
	}
	ok, err = repo.DeleteWaiting(dbc, claimed.ID, claimed.Attempts)
	if err != nil || ok {
		t.Fatalf("DeleteWaiting of an active job must not apply: ok=%v err=%v", ok, err)
	}
	ok, err = repo.DeleteWaiting(dbc, old.ID, old.Attempts)
	if err != nil || !ok {
		t.Fatalf("DeleteWaiting: ok=%v err=%v", ok, err)
	}
	if got, _ := repo.GetByID(dbc, old.ID); got != nil {
		t.Fatalf("expected old waiting job to be deleted")
	}
	if got, _ := repo.GetByID(dbc, fresh.ID); got == nil {
		t.Fatalf("expected fresh waiting job to survive")
	}
}
