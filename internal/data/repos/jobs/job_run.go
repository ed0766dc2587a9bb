package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	jobstate "github.com/yungbote/agentwriter-backend/internal/domain/jobs"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

type JobRunRepo interface {
	Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error)
	GetByKey(dbc dbctx.Context, queue string, key string) (*types.JobRun, error)
	ClaimNext(dbc dbctx.Context, queue string) (*types.JobRun, error)
	Complete(dbc dbctx.Context, id uuid.UUID, attempt int, result []byte) (bool, error)
	Fail(dbc dbctx.Context, id uuid.UUID, attempt int, errText string) (bool, error)
	Retry(dbc dbctx.Context, id uuid.UUID, attempt int, errText string, runAfter time.Time) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID, attempt int) error
	CountByState(dbc dbctx.Context, queue string) (map[string]int64, error)
	ListActiveStartedBefore(dbc dbctx.Context, queue string, cutoff time.Time) ([]*types.JobRun, error)
	ListWaitingBefore(dbc dbctx.Context, queue string, cutoff time.Time) ([]*types.JobRun, error)
	DeleteWaiting(dbc dbctx.Context, id uuid.UUID, attempt int) (bool, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{
		db:  db,
		log: baseLog.With("repo", "JobRunRepo"),
	}
}

func now() time.Time { return time.Now().UTC() }

// Create inserts jobs. A keyed job whose (queue, job_key) already exists is not
// inserted; the existing row is returned in its place.
func (r *jobRunRepo) Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(jobs) == 0 {
		return []*types.JobRun{}, nil
	}
	ts := now()
	for _, j := range jobs {
		if j.ID == uuid.Nil {
			j.ID = uuid.New()
		}
		if j.State == "" {
			j.State = jobstate.StateWaiting
		}
		if j.RunAfter.IsZero() {
			j.RunAfter = ts
		}
	}
	if err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&jobs).Error; err != nil {
		return nil, err
	}

	out := make([]*types.JobRun, 0, len(jobs))
	for _, j := range jobs {
		if j.JobKey == nil || *j.JobKey == "" {
			out = append(out, j)
			continue
		}
		var existing types.JobRun
		err := transaction.WithContext(dbc.Ctx).
			Where("queue = ? AND job_key = ?", j.Queue, *j.JobKey).
			Limit(1).
			Find(&existing).Error
		if err != nil {
			return nil, err
		}
		if existing.ID == uuid.Nil {
			out = append(out, j)
			continue
		}
		out = append(out, &existing)
	}
	return out, nil
}

func (r *jobRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var job types.JobRun
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&job).Error; err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *jobRunRepo) GetByKey(dbc dbctx.Context, queue string, key string) (*types.JobRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if queue == "" || key == "" {
		return nil, nil
	}
	var job types.JobRun
	if err := transaction.WithContext(dbc.Ctx).
		Where("queue = ? AND job_key = ?", queue, key).
		Limit(1).
		Find(&job).Error; err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

// ClaimNext moves the oldest runnable waiting job on queue to active and
// returns it with its new attempt number. It returns nil when nothing is due.
func (r *jobRunRepo) ClaimNext(dbc dbctx.Context, queue string) (*types.JobRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	ts := now()
	var claimed *types.JobRun
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var job types.JobRun
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("queue = ? AND state = ? AND run_after <= ?", queue, jobstate.StateWaiting, ts).
			Order("run_after ASC, created_at ASC").
			First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		res := txx.Model(&types.JobRun{}).
			Where("id = ? AND state = ?", job.ID, jobstate.StateWaiting).
			Updates(map[string]interface{}{
				"state":        jobstate.StateActive,
				"attempts":     gorm.Expr("attempts + 1"),
				"started_at":   ts,
				"heartbeat_at": ts,
				"updated_at":   ts,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		job.State = jobstate.StateActive
		job.Attempts++
		job.StartedAt = &ts
		job.HeartbeatAt = &ts
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// finish applies updates only while the job is still the active delivery
// identified by attempt; a job force-failed by the monitor or re-claimed
// after a timeout is left alone.
func (r *jobRunRepo) finish(dbc dbctx.Context, id uuid.UUID, attempt int, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = now()
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.JobRun{}).
		Where("id = ? AND state = ? AND attempts = ?", id, jobstate.StateActive, attempt).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRunRepo) Complete(dbc dbctx.Context, id uuid.UUID, attempt int, result []byte) (bool, error) {
	ts := now()
	updates := map[string]interface{}{
		"state":       jobstate.StateCompleted,
		"finished_at": ts,
		"error":       "",
	}
	if len(result) > 0 {
		updates["result"] = datatypes.JSON(result)
	}
	return r.finish(dbc, id, attempt, updates)
}

func (r *jobRunRepo) Fail(dbc dbctx.Context, id uuid.UUID, attempt int, errText string) (bool, error) {
	return r.finish(dbc, id, attempt, map[string]interface{}{
		"state":       jobstate.StateFailed,
		"finished_at": now(),
		"error":       errText,
	})
}

func (r *jobRunRepo) Retry(dbc dbctx.Context, id uuid.UUID, attempt int, errText string, runAfter time.Time) (bool, error) {
	return r.finish(dbc, id, attempt, map[string]interface{}{
		"state":      jobstate.StateWaiting,
		"error":      errText,
		"run_after":  runAfter.UTC(),
		"started_at": nil,
	})
}

func (r *jobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID, attempt int) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	ts := now()
	return transaction.WithContext(dbc.Ctx).
		Model(&types.JobRun{}).
		Where("id = ? AND state = ? AND attempts = ?", id, jobstate.StateActive, attempt).
		Updates(map[string]interface{}{
			"heartbeat_at": ts,
			"updated_at":   ts,
		}).Error
}

func (r *jobRunRepo) CountByState(dbc dbctx.Context, queue string) (map[string]int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []struct {
		State string
		N     int64
	}
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.JobRun{}).
		Select("state, count(*) AS n").
		Where("queue = ?", queue).
		Group("state").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := map[string]int64{
		jobstate.StateWaiting:   0,
		jobstate.StateActive:    0,
		jobstate.StateCompleted: 0,
		jobstate.StateFailed:    0,
	}
	for _, row := range rows {
		out[row.State] = row.N
	}
	return out, nil
}

func (r *jobRunRepo) ListActiveStartedBefore(dbc dbctx.Context, queue string, cutoff time.Time) ([]*types.JobRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.JobRun
	if err := transaction.WithContext(dbc.Ctx).
		Where("queue = ? AND state = ? AND started_at IS NOT NULL AND started_at < ?", queue, jobstate.StateActive, cutoff.UTC()).
		Order("started_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRunRepo) ListWaitingBefore(dbc dbctx.Context, queue string, cutoff time.Time) ([]*types.JobRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.JobRun
	if err := transaction.WithContext(dbc.Ctx).
		Where("queue = ? AND state = ? AND run_after < ?", queue, jobstate.StateWaiting, cutoff.UTC()).
		Order("run_after ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteWaiting soft-deletes one job while it is still waiting on the same
// attempt; a job claimed or retried since it was listed is left alone.
func (r *jobRunRepo) DeleteWaiting(dbc dbctx.Context, id uuid.UUID, attempt int) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND state = ? AND attempts = ?", id, jobstate.StateWaiting, attempt).
		Delete(&types.JobRun{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
