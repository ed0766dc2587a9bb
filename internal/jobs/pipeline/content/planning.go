package content

import (
	"strings"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	domain "github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/provider"
	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
)

const (
	maxKeywords = 8
	ragTopK     = 5
)

type planningOutput struct {
	Keywords       []string `json:"keywords"`
	OptimizedQuery string   `json:"optimized_query"`
}

// Planning turns the request into keywords and a search query, and pulls the
// persona's closest brand chunks.
type Planning struct{ stage }

func NewPlanning(deps Deps) *Planning {
	return &Planning{newStage(deps, contract.QueueContentPlanning, domain.StatusPlanning)}
}

func (h *Planning) Queue() string { return h.queue }

func (h *Planning) Run(jc *runtime.Context) error {
	var p contract.PlanningPayload
	return h.run(jc, &p, func(c *types.Content) error {
		var out planningOutput
		usage, err := h.deps.LLM.GenerateJSON(jc.Ctx, planningSystem(p.Persona), planningUser(p.ContentRequest), &out)
		if err != nil {
			return provider.Err("plan", err)
		}
		h.meterLLM(jc.Ctx, p.UserID, usage)

		keywords := cleanKeywords(out.Keywords, maxKeywords)
		if len(keywords) == 0 {
			return provider.Degenerate("planning returned no keywords")
		}
		query := strings.TrimSpace(out.OptimizedQuery)
		if query == "" {
			query = strings.Join(keywords, " ")
		}

		chunks, err := h.retrieve(jc, p, query)
		if err != nil {
			return err
		}
		return h.next(jc, contract.QueueContentResearching, p, contract.ResearchingPayload{
			PlanningPayload: p,
			Keywords:        keywords,
			RagChunks:       chunks,
			OptimizedQuery:  query,
		})
	})
}

// retrieve returns no chunks when no vector store is configured.
func (h *Planning) retrieve(jc *runtime.Context, p contract.PlanningPayload, query string) ([]contract.RagChunk, error) {
	if h.deps.Vectors == nil {
		return []contract.RagChunk{}, nil
	}
	chunks, usage, err := provider.Retrieve(jc.Ctx, h.deps.LLM, h.deps.Vectors, p.AgentID, query, ragTopK)
	h.meterLLM(jc.Ctx, p.UserID, usage)
	return chunks, err
}

func cleanKeywords(in []string, max int) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.TrimSpace(k)
		key := strings.ToLower(k)
		if k == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, k)
		if len(out) == max {
			break
		}
	}
	return out
}
