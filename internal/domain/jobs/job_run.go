package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StateWaiting   = "waiting"
	StateActive    = "active"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// JobRun is one delivery unit on a named queue. JobKey, when set, makes
// (queue, job_key) unique so re-enqueues of the same logical step collapse.
type JobRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Queue       string         `gorm:"column:queue;not null;index:idx_job_run_claim,priority:1;uniqueIndex:idx_job_run_key,priority:1" json:"queue"`
	OwnerUserID uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	EntityType  string         `gorm:"column:entity_type;index" json:"entity_type,omitempty"`
	EntityID    *uuid.UUID     `gorm:"type:uuid;column:entity_id;index" json:"entity_id,omitempty"`
	JobKey      *string        `gorm:"column:job_key;uniqueIndex:idx_job_run_key,priority:2" json:"job_key,omitempty"`
	State       string         `gorm:"column:state;not null;index:idx_job_run_claim,priority:2" json:"state"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	MaxAttempts int            `gorm:"column:max_attempts;not null;default:3" json:"max_attempts"`
	Payload     datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Result      datatypes.JSON `gorm:"column:result;type:jsonb" json:"result,omitempty"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	RunAfter    time.Time      `gorm:"column:run_after;not null;index:idx_job_run_claim,priority:3" json:"run_after"`
	StartedAt   *time.Time     `gorm:"column:started_at;index" json:"started_at,omitempty"`
	FinishedAt  *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at" json:"heartbeat_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (JobRun) TableName() string { return "job_run" }

func (j *JobRun) BeforeCreate(*gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.State == "" {
		j.State = StateWaiting
	}
	if j.RunAfter.IsZero() {
		j.RunAfter = time.Now()
	}
	return nil
}

func (j *JobRun) FinalAttempt() bool {
	return j.MaxAttempts > 0 && j.Attempts >= j.MaxAttempts
}
