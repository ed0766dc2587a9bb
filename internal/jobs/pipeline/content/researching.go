package content

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

const searchResults = 5

// Researching gathers web sources for the optimized query and the agent's
// brand document. Without a search provider it falls back to model notes.
type Researching struct{ stage }

func NewResearching(deps Deps) *Researching {
	return &Researching{newStage(deps, contract.QueueContentResearching, domain.StatusResearching)}
}

func (h *Researching) Queue() string { return h.queue }

func (h *Researching) Run(jc *runtime.Context) error {
	var p contract.ResearchingPayload
	return h.run(jc, &p, func(c *types.Content) error {
		var (
			research string
			sources  []contract.SearchSource
			err      error
		)
		if h.deps.Search != nil {
			research, sources, err = h.search(jc, p)
		} else {
			research, err = h.notes(jc, p)
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(research) == "" {
			return provider.Degenerate("research is empty")
		}

		brand, err := h.brandDocument(jc, p)
		if err != nil {
			return err
		}
		return h.next(jc, contract.QueueContentWriting, p.Planning(), contract.WritingPayload{
			ResearchingPayload: p,
			WebSearchContent:   research,
			BrandDocument:      brand,
			SearchSources:      sources,
		})
	})
}

func (h *Researching) search(jc *runtime.Context, p contract.ResearchingPayload) (string, []contract.SearchSource, error) {
	results, err := h.deps.Search.Search(jc.Ctx, p.OptimizedQuery, searchResults)
	h.meterSearch(jc.Ctx, p.UserID)
	if err != nil {
		return "", nil, provider.Err("web search", err)
	}
	var b strings.Builder
	sources := make([]contract.SearchSource, 0, len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", i+1, r.Title, r.URL, truncate(r.Content, maxResultChars))
		sources = append(sources, contract.SearchSource{Title: r.Title, URL: r.URL})
	}
	return truncate(b.String(), maxWebContentChars), sources, nil
}

func (h *Researching) notes(jc *runtime.Context, p contract.ResearchingPayload) (string, error) {
	user := fmt.Sprintf("Query: %s\nKeywords: %s", p.OptimizedQuery, strings.Join(p.Keywords, ", "))
	text, usage, err := h.deps.LLM.GenerateText(jc.Ctx, researchSystem(p.Persona), user)
	if err != nil {
		return "", provider.Err("research notes", err)
	}
	h.meterLLM(jc.Ctx, p.UserID, usage)
	return truncate(text, maxWebContentChars), nil
}

func (h *Researching) brandDocument(jc *runtime.Context, p contract.ResearchingPayload) (string, error) {
	agent, err := h.deps.Repos.Agent.GetByID(dbctx.Context{Ctx: jc.Ctx}, p.AgentID)
	if err != nil {
		return "", fmt.Errorf("load agent: %w", err)
	}
	if agent == nil {
		return "", runtime.Permanent(fmt.Errorf("agent %s no longer exists", p.AgentID))
	}
	return truncate(agent.BrandDocument, maxBrandContextChars), nil
}

