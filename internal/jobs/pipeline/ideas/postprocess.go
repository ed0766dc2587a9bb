package ideas

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	domain "github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/provider"
	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/realtime"
	"github.com/yungbote/agentwriter-backend/internal/services"
)

// PostProcess drops duplicate ideas, inserts the rest as pending and closes
// the idea run.
type PostProcess struct{ stage }

func NewPostProcess(deps Deps) *PostProcess {
	return &PostProcess{newStage(deps, contract.QueueIdeasPostProcess, domain.IdeaRunAnalyzing)}
}

func (h *PostProcess) Queue() string { return h.queue }

func (h *PostProcess) Run(jc *runtime.Context) error {
	var p contract.IdeaPostProcessPayload
	return h.run(jc, &p, func(a *types.Agent) error {
		existing, err := h.deps.Repos.Idea.ListTitlesByAgent(dbctx.Context{Ctx: jc.Ctx}, a.ID)
		if err != nil {
			return fmt.Errorf("list idea titles: %w", err)
		}
		kept := Survivors(p.CheckedIdeas, existing)
		if len(kept) == 0 {
			return provider.Degenerate("all %d ideas were empty or duplicates", len(p.CheckedIdeas))
		}

		rows := make([]*types.Idea, 0, len(kept))
		for _, d := range kept {
			kw, err := json.Marshal(d.Keywords)
			if err != nil {
				return runtime.Permanent(fmt.Errorf("encode keywords: %w", err))
			}
			rows = append(rows, &types.Idea{
				ID:          uuid.New(),
				AgentID:     a.ID,
				UserID:      a.UserID,
				Title:       d.Title,
				Description: d.Description,
				Layout:      d.Layout,
				Status:      domain.IdeaPending,
				Keywords:    datatypes.JSON(kw),
			})
		}

		err = h.deps.Tracker.Commit(jc.Ctx, h.ref(p.Plan()), domain.IdeaRunCompleted, "", func(tx *gorm.DB) error {
			_, err := h.deps.Repos.Idea.Create(dbctx.Context{Ctx: jc.Ctx, Tx: tx}, rows)
			return err
		})
		if errors.Is(err, domain.ErrInvalidTransition) {
			h.log.Info("idea run moved on before insert, dropping ideas", "agent_id", a.ID, "run", p.Run)
			return nil
		}
		if err != nil {
			return fmt.Errorf("insert ideas: %w", err)
		}

		for _, row := range rows {
			h.deps.Tracker.Announce(jc.Ctx, services.EntityRef{Kind: services.KindIdea, ID: row.ID, OwnerID: row.UserID}, string(domain.IdeaPending), "")
			if h.deps.Emitter != nil {
				h.deps.Emitter.Emit(jc.Ctx, realtime.SSEMessage{
					Channel: a.ID.String(),
					Event:   realtime.SSEEventIdeaCreated,
					Data:    row,
				})
			}
		}
		jc.SetResult(map[string]any{"agent_id": a.ID, "run": p.Run, "created": len(rows), "dropped": len(p.CheckedIdeas) - len(rows)})
		return nil
	})
}

// Survivors drops untitled ideas and titles already taken, comparing
// case-insensitively against existing titles and earlier ideas in the batch.
func Survivors(drafts []contract.IdeaDraft, existing []string) []contract.IdeaDraft {
	seen := make(map[string]bool, len(existing)+len(drafts))
	for _, t := range existing {
		seen[titleKey(t)] = true
	}
	out := make([]contract.IdeaDraft, 0, len(drafts))
	for _, d := range drafts {
		d.Title = strings.TrimSpace(d.Title)
		key := titleKey(d.Title)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}

func titleKey(t string) string {
	return strings.ToLower(strings.Join(strings.Fields(t), " "))
}
