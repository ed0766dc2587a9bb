package ideas

import (
	"fmt"
	"strings"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	domain "github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/provider"
	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
)

type ideasOutput struct {
	Ideas []contract.IdeaDraft `json:"ideas"`
}

// Generate proposes the batch of ideas.
type Generate struct{ stage }

func NewGenerate(deps Deps) *Generate {
	return &Generate{newStage(deps, contract.QueueIdeasGenerate, domain.IdeaRunGenerating)}
}

func (h *Generate) Queue() string { return h.queue }

func (h *Generate) Run(jc *runtime.Context) error {
	var p contract.IdeaGeneratePayload
	return h.run(jc, &p, func(a *types.Agent) error {
		existing, err := h.deps.Repos.Idea.ListTitlesByAgent(dbctx.Context{Ctx: jc.Ctx}, a.ID)
		if err != nil {
			return fmt.Errorf("list idea titles: %w", err)
		}
		var out ideasOutput
		usage, err := h.deps.LLM.GenerateJSON(jc.Ctx, generateSystem(p.Persona), generateUser(p, existing), &out)
		if err != nil {
			return provider.Err("generate ideas", err)
		}
		h.meterLLM(jc.Ctx, p.UserID, usage)

		drafts := normalize(out.Ideas, p.Count)
		if len(drafts) == 0 {
			return provider.Degenerate("generation returned no usable ideas")
		}
		return h.next(jc, contract.QueueIdeasGrammar, p.Plan(), contract.IdeaGrammarPayload{
			IdeaGeneratePayload: p,
			Ideas:               drafts,
		})
	})
}

// normalize drops untitled ideas, defaults unknown layouts to article and
// keeps at most max.
func normalize(in []contract.IdeaDraft, max int) []contract.IdeaDraft {
	out := make([]contract.IdeaDraft, 0, len(in))
	for _, d := range in {
		d.Title = strings.TrimSpace(d.Title)
		d.Description = strings.TrimSpace(d.Description)
		if d.Title == "" {
			continue
		}
		if d.Description == "" {
			d.Description = d.Title
		}
		d.Layout = domain.Layout(strings.ToLower(strings.TrimSpace(string(d.Layout))))
		if !d.Layout.Valid() {
			d.Layout = domain.LayoutArticle
		}
		d.Keywords = dedupe(d.Keywords, maxThemes)
		out = append(out, d)
		if len(out) == max {
			break
		}
	}
	return out
}
