package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

type AgentRepo interface {
	Create(dbc dbctx.Context, a *types.Agent) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Agent, error)
	ListIDsByUser(dbc dbctx.Context, userID uuid.UUID) ([]uuid.UUID, error)
	UpdateBrandStatus(dbc dbctx.Context, w StatusWrite) (bool, error)
	UpdateIdeaStatus(dbc dbctx.Context, w StatusWrite) (bool, error)
	SetBrandDocument(dbc dbctx.Context, id uuid.UUID, document, hash, status string) error
	RetriggerIdeas(dbc dbctx.Context, id uuid.UUID, from []string, to string) (int, bool, error)
	RecordBrandBatch(dbc dbctx.Context, id uuid.UUID, hash string, batch int) (int64, error)
	BrandBatchSaved(dbc dbctx.Context, id uuid.UUID, hash string, batch int) (bool, error)
}

type agentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAgentRepo(db *gorm.DB, baseLog *logger.Logger) AgentRepo {
	return &agentRepo{db: db, log: baseLog.With("repo", "AgentRepo")}
}

func (r *agentRepo) Create(dbc dbctx.Context, a *types.Agent) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(a).Error
}

func (r *agentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Agent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Agent
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

func (r *agentRepo) ListIDsByUser(dbc dbctx.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Agent{}).
		Where("user_id = ?", userID).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *agentRepo) UpdateBrandStatus(dbc dbctx.Context, w StatusWrite) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return applyStatusWrite(transaction.WithContext(dbc.Ctx), &types.Agent{}, "brand_status", "brand_message", w)
}

func (r *agentRepo) UpdateIdeaStatus(dbc dbctx.Context, w StatusWrite) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return applyStatusWrite(transaction.WithContext(dbc.Ctx), &types.Agent{}, "idea_status", "idea_message", w)
}

// SetBrandDocument replaces the brand document unconditionally; a new hash
// supersedes any chunk jobs still queued for the previous document.
func (r *agentRepo) SetBrandDocument(dbc dbctx.Context, id uuid.UUID, document, hash, status string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Agent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"brand_document":      document,
			"brand_document_hash": hash,
			"brand_status":        status,
			"brand_message":       "",
			"updated_at":          time.Now().UTC(),
		}).Error
}

func (r *agentRepo) RetriggerIdeas(dbc dbctx.Context, id uuid.UUID, from []string, to string) (int, bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var run int
	var ok bool
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		res := txx.Model(&types.Agent{}).
			Where("id = ? AND idea_status IN ?", id, from).
			Updates(map[string]interface{}{
				"idea_status":  to,
				"idea_message": "",
				"idea_run":     gorm.Expr("idea_run + 1"),
				"updated_at":   time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		ok = true
		return txx.Model(&types.Agent{}).
			Select("idea_run").
			Where("id = ?", id).
			Scan(&run).Error
	})
	if err != nil {
		return 0, false, err
	}
	return run, ok, nil
}

// RecordBrandBatch marks batch of document hash as embedded and returns how
// many distinct batches of that hash are recorded. The agent row is locked
// for the duration, so concurrent batches see each other's rows and exactly
// one of them observes the final count.
func (r *agentRepo) RecordBrandBatch(dbc dbctx.Context, id uuid.UUID, hash string, batch int) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var saved int64
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var locked types.Agent
		if err := txx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", id).
			Limit(1).
			Find(&locked).Error; err != nil {
			return err
		}
		if err := txx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&types.BrandChunkBatch{AgentID: id, DocumentHash: hash, BatchIndex: batch}).Error; err != nil {
			return err
		}
		return txx.Model(&types.BrandChunkBatch{}).
			Where("agent_id = ? AND document_hash = ?", id, hash).
			Count(&saved).Error
	})
	if err != nil {
		return 0, err
	}
	return saved, nil
}

func (r *agentRepo) BrandBatchSaved(dbc dbctx.Context, id uuid.UUID, hash string, batch int) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.BrandChunkBatch{}).
		Where("agent_id = ? AND document_hash = ? AND batch_index = ?", id, hash, batch).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
