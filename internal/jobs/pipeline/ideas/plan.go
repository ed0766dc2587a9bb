package ideas

import (
	"strings"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	domain "github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/provider"
	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
	"github.com/yungbote/agentwriter-backend/internal/platform/openai"
)

const (
	maxThemes = 8
	ragTopK   = 5
)

// Plan picks the themes a batch of ideas should cover and pulls brand context.
type Plan struct{ stage }

func NewPlan(deps Deps) *Plan {
	return &Plan{newStage(deps, contract.QueueIdeasPlan, domain.IdeaRunPlanning)}
}

func (h *Plan) Queue() string { return h.queue }

func (h *Plan) Run(jc *runtime.Context) error {
	var p contract.IdeaPlanPayload
	return h.run(jc, &p, func(a *types.Agent) error {
		var out struct {
			Keywords []string `json:"keywords"`
		}
		usage, err := h.deps.LLM.GenerateJSON(jc.Ctx, planSystem(p.Persona), planUser(p), &out)
		if err != nil {
			return provider.Err("plan ideas", err)
		}
		h.meterLLM(jc.Ctx, p.UserID, usage)
		themes := dedupe(out.Keywords, maxThemes)
		if len(themes) == 0 {
			return provider.Degenerate("idea planning returned no themes")
		}

		chunks := []contract.RagChunk{}
		if h.deps.Vectors != nil && a.BrandStatus == domain.BrandReady {
			query := p.Topic
			if query == "" {
				query = strings.Join(themes, " ")
			}
			var embedUsage openai.Usage
			chunks, embedUsage, err = provider.Retrieve(jc.Ctx, h.deps.LLM, h.deps.Vectors, p.AgentID, query, ragTopK)
			h.meterLLM(jc.Ctx, p.UserID, embedUsage)
			if err != nil {
				return err
			}
		}
		return h.next(jc, contract.QueueIdeasGenerate, p, contract.IdeaGeneratePayload{
			IdeaPlanPayload: p,
			Keywords:        themes,
			RagChunks:       chunks,
		})
	})
}

// dedupe trims, drops empties and case-insensitive repeats, and caps at max.
func dedupe(in []string, max int) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
		if len(out) == max {
			break
		}
	}
	return out
}
