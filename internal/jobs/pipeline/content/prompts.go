package content

import (
	"fmt"
	"strings"
	"unicode/utf8"

	domain "github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/platform/promptstyle"
)

const (
	maxWebContentChars   = 12000
	maxResultChars       = 2500
	maxBrandContextChars = 6000
)

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

func layoutGuidance(l domain.Layout) string {
	switch l {
	case domain.LayoutTutorial:
		return "Write a step-by-step tutorial with a short intro, prerequisites, numbered steps under section headings and a wrap-up."
	case domain.LayoutChangelog:
		return "Write a changelog entry: a one-line summary followed by bullet lists grouped under Added, Changed and Fixed headings as applicable."
	case domain.LayoutInterview:
		return "Write an interview in question and answer form. Each question is its own heading ending in a question mark, followed by the answer."
	}
	return "Write a well-structured article with a title, an introduction, several sections with headings and a conclusion."
}

func planningSystem(p contract.Persona) string {
	return promptstyle.ApplySystem(personaBlock(p)+`
You plan content. Given a content request, return JSON:
{"keywords": [3-8 short search keywords], "optimized_query": "one web search query that would find the best sources"}`, "json")
}

func planningUser(req contract.ContentRequest) string {
	return fmt.Sprintf("Layout: %s\nRequest:\n%s", req.Layout, req.Description)
}

func researchSystem(p contract.Persona) string {
	return promptstyle.ApplySystem(personaBlock(p)+`
No web search is available. Write concise research notes on the query: key facts, definitions and common pitfalls, as a bullet list.`, "text")
}

func writingSystem(p contract.Persona, layout domain.Layout) string {
	return promptstyle.ApplySystem(personaBlock(p)+"\nYou write the first full draft in markdown.\n"+layoutGuidance(layout), "text")
}

func writingUser(p contract.WritingPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request:\n%s\n\nKeywords: %s\n", p.ContentRequest.Description, strings.Join(p.Keywords, ", "))
	if len(p.RagChunks) > 0 {
		b.WriteString("\nPersona knowledge:\n")
		for _, c := range p.RagChunks {
			fmt.Fprintf(&b, "- %s\n", c.Text)
		}
	}
	if p.BrandDocument != "" {
		fmt.Fprintf(&b, "\nBrand guidelines:\n%s\n", p.BrandDocument)
	}
	fmt.Fprintf(&b, "\nResearch:\n%s\n", p.WebSearchContent)
	if len(p.SearchSources) > 0 {
		b.WriteString("\nSources you may cite:\n")
		for _, s := range p.SearchSources {
			fmt.Fprintf(&b, "- [%s](%s)\n", s.Title, s.URL)
		}
	}
	return b.String()
}


func metaSystem(p contract.Persona) string {
	return promptstyle.ApplySystem(personaBlock(p)+`
You prepare publishing metadata for a finished markdown piece. Return JSON:
{"title": "...", "summary": "two sentences", "seo_description": "at most 160 characters", "tags": ["3-6 tags"]}`, "json")
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	end := max
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	cut := s[:end]
	if i := strings.LastIndexAny(cut, " \n"); i > max/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}
