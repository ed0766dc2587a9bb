package content

import (
	"fmt"
	"strings"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	domain "github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/provider"
	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
	"github.com/yungbote/agentwriter-backend/internal/markdown"
	"github.com/yungbote/agentwriter-backend/internal/platform/promptstyle"
)

// editorProfile is the house style an editor applies to one layout.
type editorProfile struct {
	role  string
	rules []string
}

var editorProfiles = map[domain.Layout]editorProfile{
	domain.LayoutArticle: {
		role: "a senior magazine editor",
		rules: []string{
			"Open with a level-1 heading that works as the title.",
			"Tighten the introduction to at most three sentences.",
			"Give every major section its own heading and cut repetition between sections.",
			"End with a short conclusion that restates the key takeaway.",
		},
	},
	domain.LayoutTutorial: {
		role: "a technical documentation editor",
		rules: []string{
			"Open with a level-1 heading that names what the reader will build or learn.",
			"List prerequisites before the first step.",
			"Keep steps numbered and imperative, one action per step.",
			"Keep code blocks fenced with a language tag and never alter their contents.",
		},
	},
}

func editingSystem(p contract.Persona, layout domain.Layout) string {
	prof, ok := editorProfiles[layout]
	if !ok {
		prof = editorProfiles[domain.LayoutArticle]
	}
	var b strings.Builder
	b.WriteString(personaBlock(p))
	fmt.Fprintf(&b, "\nYou are %s. Edit the draft for clarity, flow and structure in the persona's voice.\n", prof.role)
	for _, r := range prof.rules {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	b.WriteString("Keep every factual claim and link. Return the full edited markdown only.")
	return promptstyle.ApplySystem(b.String(), "text")
}

// Editing rewrites article and tutorial drafts and checks the result still
// has the structure its layout requires.
type Editing struct{ stage }

func NewEditing(deps Deps) *Editing {
	return &Editing{newStage(deps, contract.QueueContentEditing, domain.StatusEditing)}
}

func (h *Editing) Queue() string { return h.queue }

func (h *Editing) Run(jc *runtime.Context) error {
	var p contract.EditingPayload
	return h.run(jc, &p, func(c *types.Content) error {
		layout := p.ContentRequest.Layout
		edited, usage, err := h.deps.LLM.GenerateText(jc.Ctx, editingSystem(p.Persona, layout), p.Draft)
		if err != nil {
			return provider.Err("edit draft", err)
		}
		h.meterLLM(jc.Ctx, p.UserID, usage)
		edited = strings.TrimSpace(edited)

		// A shape miss is usually a sampling accident, so it is left to the retry budget.
		if err := markdown.CheckLayout(string(layout), markdown.Parse(edited).Stats()); err != nil {
			return fmt.Errorf("edited draft: %w", err)
		}
		return h.next(jc, contract.QueueContentPostProcess, p.Planning(), contract.PostProcessingPayload{
			EditingPayload: p,
			EditedDraft:    edited,
			Editor:         contract.EditorEditing,
		})
	})
}
