package content

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

type ContentVersionRepo interface {
	Create(dbc dbctx.Context, v *types.ContentVersion) error
	MaxVersion(dbc dbctx.Context, contentID uuid.UUID) (int, error)
	ListByContent(dbc dbctx.Context, contentID uuid.UUID) ([]*types.ContentVersion, error)
}

type contentVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentVersionRepo(db *gorm.DB, baseLog *logger.Logger) ContentVersionRepo {
	return &contentVersionRepo{db: db, log: baseLog.With("repo", "ContentVersionRepo")}
}

func (r *contentVersionRepo) Create(dbc dbctx.Context, v *types.ContentVersion) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(v).Error
}

func (r *contentVersionRepo) MaxVersion(dbc dbctx.Context, contentID uuid.UUID) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var max int
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.ContentVersion{}).
		Select("COALESCE(MAX(version), 0)").
		Where("content_id = ?", contentID).
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max, nil
}

func (r *contentVersionRepo) ListByContent(dbc dbctx.Context, contentID uuid.UUID) ([]*types.ContentVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ContentVersion
	if err := transaction.WithContext(dbc.Ctx).
		Where("content_id = ?", contentID).
		Order("version ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
