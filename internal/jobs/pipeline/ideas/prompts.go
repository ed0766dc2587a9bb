package ideas

import (
	"fmt"
	"strings"

	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/platform/promptstyle"
)

const maxExistingTitles = 50

func personaBlock(p contract.Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Persona: %s\nPurpose: %s\n", p.Name, p.Purpose)
	if p.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n", p.Tone)
	}
	if p.Audience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", p.Audience)
	}
	return b.String()
}

func planSystem(p contract.Persona) string {
	return promptstyle.ApplySystem(personaBlock(p)+`
You plan a batch of content ideas for this persona. Return JSON:
{"keywords": [3-8 themes or search keywords the ideas should cover]}`, "json")
}

func planUser(p contract.IdeaPlanPayload) string {
	if p.Topic == "" {
		return fmt.Sprintf("Plan themes for %d ideas that fit the persona's purpose.", p.Count)
	}
	return fmt.Sprintf("Plan themes for %d ideas about: %s", p.Count, p.Topic)
}

func generateSystem(p contract.Persona) string {
	return promptstyle.ApplySystem(personaBlock(p)+`
You propose content ideas. Return JSON:
{"ideas": [{"title": "...", "description": "two or three sentences on what the piece covers", "layout": "article|tutorial|changelog|interview", "keywords": ["..."]}]}
Titles must be specific and must not repeat any existing title.`, "json")
}

func generateUser(p contract.IdeaGeneratePayload, existing []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Propose exactly %d ideas.\nThemes: %s\n", p.Count, strings.Join(p.Keywords, ", "))
	if p.Topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", p.Topic)
	}
	if len(p.RagChunks) > 0 {
		b.WriteString("\nPersona knowledge:\n")
		for _, c := range p.RagChunks {
			fmt.Fprintf(&b, "- %s\n", c.Text)
		}
	}
	if len(existing) > maxExistingTitles {
		existing = existing[:maxExistingTitles]
	}
	if len(existing) > 0 {
		b.WriteString("\nExisting titles:\n")
		for _, t := range existing {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}
	return b.String()
}

func grammarSystem() string {
	return promptstyle.ApplySystem(`You are a copy editor. Fix grammar, spelling and capitalization in each idea's title and description.
Do not add, drop or reorder ideas. Return JSON in the same shape you received: {"ideas": [...]}`, "json")
}
