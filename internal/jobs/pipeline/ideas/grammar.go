package ideas

import (
	"encoding/json"
	"fmt"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	domain "github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/provider"
	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
)

// Grammar proofreads titles and descriptions. Layout and keywords are kept
// from the generated ideas.
type Grammar struct{ stage }

func NewGrammar(deps Deps) *Grammar {
	return &Grammar{newStage(deps, contract.QueueIdeasGrammar, domain.IdeaRunGrammarChecking)}
}

func (h *Grammar) Queue() string { return h.queue }

func (h *Grammar) Run(jc *runtime.Context) error {
	var p contract.IdeaGrammarPayload
	return h.run(jc, &p, func(a *types.Agent) error {
		in, err := json.Marshal(ideasOutput{Ideas: p.Ideas})
		if err != nil {
			return runtime.Permanent(fmt.Errorf("encode ideas: %w", err))
		}
		var out ideasOutput
		usage, err := h.deps.LLM.GenerateJSON(jc.Ctx, grammarSystem(), string(in), &out)
		if err != nil {
			return provider.Err("grammar check ideas", err)
		}
		h.meterLLM(jc.Ctx, p.UserID, usage)

		checked := p.Ideas
		if len(out.Ideas) == len(p.Ideas) {
			checked = make([]contract.IdeaDraft, len(p.Ideas))
			for i, orig := range p.Ideas {
				checked[i] = orig
				if t := out.Ideas[i].Title; t != "" {
					checked[i].Title = t
				}
				if d := out.Ideas[i].Description; d != "" {
					checked[i].Description = d
				}
			}
		} else {
			h.log.Warn("grammar check changed the idea count, keeping originals", "agent_id", a.ID, "in", len(p.Ideas), "out", len(out.Ideas))
		}
		return h.next(jc, contract.QueueIdeasPostProcess, p.Plan(), contract.IdeaPostProcessPayload{
			IdeaGrammarPayload: p,
			CheckedIdeas:       checked,
		})
	})
}
