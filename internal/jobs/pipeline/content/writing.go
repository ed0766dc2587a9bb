package content

import (
	"strings"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	domain "github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/provider"
	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
)

// Writing produces the first draft and routes it by layout to editing or
// grammar checking.
type Writing struct{ stage }

func NewWriting(deps Deps) *Writing {
	return &Writing{newStage(deps, contract.QueueContentWriting, domain.StatusWriting)}
}

func (h *Writing) Queue() string { return h.queue }

func (h *Writing) Run(jc *runtime.Context) error {
	var p contract.WritingPayload
	return h.run(jc, &p, func(c *types.Content) error {
		draft, usage, err := h.deps.LLM.GenerateText(jc.Ctx, writingSystem(p.Persona, p.ContentRequest.Layout), writingUser(p))
		if err != nil {
			return provider.Err("write draft", err)
		}
		h.meterLLM(jc.Ctx, p.UserID, usage)
		draft = strings.TrimSpace(draft)
		if len(strings.Fields(draft)) == 0 {
			return provider.Degenerate("draft is empty")
		}
		return h.next(jc, contract.NextEditQueue(p.ContentRequest.Layout), p.Planning(), contract.EditingPayload{
			WritingPayload: p,
			Draft:          draft,
		})
	})
}
