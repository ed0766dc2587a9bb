package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

type ContentRepo interface {
	Create(dbc dbctx.Context, rows []*types.Content) ([]*types.Content, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Content, error)
	UpdateStatus(dbc dbctx.Context, w StatusWrite) (bool, error)
	Retrigger(dbc dbctx.Context, id uuid.UUID, from []string, to string) (int, bool, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	AdvanceVersion(dbc dbctx.Context, id uuid.UUID, expected int) (bool, error)
}

type contentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentRepo(db *gorm.DB, baseLog *logger.Logger) ContentRepo {
	return &contentRepo{db: db, log: baseLog.With("repo", "ContentRepo")}
}

func (r *contentRepo) Create(dbc dbctx.Context, rows []*types.Content) ([]*types.Content, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.Content{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *contentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Content, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Content
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *contentRepo) UpdateStatus(dbc dbctx.Context, w StatusWrite) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return applyStatusWrite(transaction.WithContext(dbc.Ctx), &types.Content{}, "status", "error_message", w)
}

// Retrigger resets a content row in one of the from statuses to `to` and bumps
// its run so jobs from the previous run are recognised as superseded.
func (r *contentRepo) Retrigger(dbc dbctx.Context, id uuid.UUID, from []string, to string) (int, bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var run int
	var ok bool
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		res := txx.Model(&types.Content{}).
			Where("id = ? AND status IN ?", id, from).
			Updates(map[string]interface{}{
				"status":        to,
				"run":           gorm.Expr("run + 1"),
				"error_message": "",
				"updated_at":    time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		ok = true
		return txx.Model(&types.Content{}).
			Select("run").
			Where("id = ?", id).
			Scan(&run).Error
	})
	if err != nil {
		return 0, false, err
	}
	return run, ok, nil
}

func (r *contentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Content{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// AdvanceVersion moves current_version from expected to expected+1. It reports
// false when another writer advanced it first.
func (r *contentRepo) AdvanceVersion(dbc dbctx.Context, id uuid.UUID, expected int) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Content{}).
		Where("id = ? AND current_version = ?", id, expected).
		Updates(map[string]interface{}{
			"current_version": expected + 1,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
