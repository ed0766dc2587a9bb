package content

import (
	"fmt"
	"strings"
	"unicode/utf8"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	domain "github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/provider"
	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
	"github.com/yungbote/agentwriter-backend/internal/markdown"
	"github.com/yungbote/agentwriter-backend/internal/platform/promptstyle"
)

var grammarProfiles = map[domain.Layout]editorProfile{
	domain.LayoutInterview: {
		role: "a copy editor for interview transcripts",
		rules: []string{
			"Keep every question as its own heading ending in a question mark.",
			"Keep each answer directly under its question and in the speaker's words.",
			"Never merge, drop or reorder questions.",
		},
	},
	domain.LayoutChangelog: {
		role: "a copy editor for release notes",
		rules: []string{
			"Keep every change as a bullet under its Added, Changed or Fixed heading.",
			"Start each bullet with a verb and keep it to one line.",
			"Never move a change to a different section.",
		},
	},
}

func grammarSystem(layout domain.Layout) string {
	var b strings.Builder
	if prof, ok := grammarProfiles[layout]; ok {
		fmt.Fprintf(&b, "You are %s. Fix grammar, spelling and punctuation only.\n", prof.role)
		for _, r := range prof.rules {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	} else {
		b.WriteString("You are a copy editor. Fix grammar, spelling and punctuation only.\n")
	}
	b.WriteString("Keep the structure, headings, links and meaning unchanged. Return the full corrected markdown.")
	return promptstyle.ApplySystem(b.String(), "text")
}

// Grammar proofreads changelog and interview drafts without restructuring them.
type Grammar struct{ stage }

func NewGrammar(deps Deps) *Grammar {
	return &Grammar{newStage(deps, contract.QueueContentGrammar, domain.StatusGrammarChecking)}
}

func (h *Grammar) Queue() string { return h.queue }

func (h *Grammar) Run(jc *runtime.Context) error {
	var p contract.EditingPayload
	return h.run(jc, &p, func(c *types.Content) error {
		layout := p.ContentRequest.Layout
		checked, usage, err := h.deps.LLM.GenerateText(jc.Ctx, grammarSystem(layout), p.Draft)
		if err != nil {
			return provider.Err("grammar check", err)
		}
		h.meterLLM(jc.Ctx, p.UserID, usage)
		checked = strings.TrimSpace(checked)

		// A proofread that loses half the text dropped content instead of fixing it.
		if in, out := utf8.RuneCountInString(p.Draft), utf8.RuneCountInString(checked); out*2 < in {
			return provider.Degenerate("grammar output shrank from %d to %d characters", in, out)
		}
		// Proofreading keeps structure, so a draft missing its layout's shape
		// will not gain it on a retry.
		if err := markdown.CheckLayout(string(layout), markdown.Parse(checked).Stats()); err != nil {
			return runtime.Permanent(fmt.Errorf("grammar-checked draft: %w", err))
		}
		return h.next(jc, contract.QueueContentPostProcess, p.Planning(), contract.PostProcessingPayload{
			EditingPayload: p,
			EditedDraft:    checked,
			Editor:         contract.EditorGrammar,
		})
	})
}
