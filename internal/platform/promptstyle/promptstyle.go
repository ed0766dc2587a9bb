package promptstyle

import "strings"

const marker = "AGENTWRITER_PROMPT_STYLE_V1"

// ApplySystem prepends the shared guidance block to a system prompt. Mode
// "json" asks for a single JSON object; anything else asks for plain markdown.
func ApplySystem(system string, mode string) string {
	base := strings.TrimSpace(system)
	if base == "" || strings.Contains(base, marker) {
		return base
	}
	mode = strings.ToLower(strings.TrimSpace(mode))

	var b strings.Builder
	b.WriteString(marker)
	b.WriteString("\nYou write for a brand persona. Stay in its voice and audience.")
	b.WriteString("\nFollow the system and user instructions precisely.")
	b.WriteString("\nUse the provided research and brand context as grounding; do not invent facts, quotes or links.")
	if mode == "json" {
		b.WriteString("\nReturn a single JSON object with exactly the requested keys and no commentary.")
	} else {
		b.WriteString("\nReturn only the requested markdown, without preamble or closing remarks.")
	}
	b.WriteString("\n---\n")
	b.WriteString(base)
	return b.String()
}
