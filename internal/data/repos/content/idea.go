package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

type IdeaRepo interface {
	Create(dbc dbctx.Context, rows []*types.Idea) ([]*types.Idea, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Idea, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Idea, error)
	ListTitlesByAgent(dbc dbctx.Context, agentID uuid.UUID) ([]string, error)
	UpdateStatus(dbc dbctx.Context, w StatusWrite) (bool, error)
	SetContentID(dbc dbctx.Context, id uuid.UUID, contentID uuid.UUID) error
}

type ideaRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIdeaRepo(db *gorm.DB, baseLog *logger.Logger) IdeaRepo {
	return &ideaRepo{db: db, log: baseLog.With("repo", "IdeaRepo")}
}

func (r *ideaRepo) Create(dbc dbctx.Context, rows []*types.Idea) ([]*types.Idea, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.Idea{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ideaRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Idea, error) {
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *ideaRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Idea, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Idea
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ideaRepo) ListTitlesByAgent(dbc dbctx.Context, agentID uuid.UUID) ([]string, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var titles []string
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Idea{}).
		Where("agent_id = ?", agentID).
		Pluck("title", &titles).Error; err != nil {
		return nil, err
	}
	return titles, nil
}

func (r *ideaRepo) UpdateStatus(dbc dbctx.Context, w StatusWrite) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return applyStatusWrite(transaction.WithContext(dbc.Ctx), &types.Idea{}, "status", "", w)
}

func (r *ideaRepo) SetContentID(dbc dbctx.Context, id uuid.UUID, contentID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Idea{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content_id": contentID,
			"updated_at": time.Now().UTC(),
		}).Error
}
