package provider

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/platform/openai"
	"github.com/yungbote/agentwriter-backend/internal/platform/qdrant"
)

// Retrieve embeds query and returns the agent's topK closest brand chunks.
// The embedding usage is returned even when the vector search fails so the
// caller can meter it.
func Retrieve(ctx context.Context, llm openai.Client, vectors qdrant.Store, agentID uuid.UUID, query string, topK int) ([]contract.RagChunk, openai.Usage, error) {
	vecs, usage, err := llm.Embed(ctx, []string{query})
	if err != nil {
		return nil, usage, Err("embed query", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, usage, Degenerate("embedding returned %d vectors", len(vecs))
	}
	matches, err := vectors.Search(ctx, contract.BrandNamespace(agentID), vecs[0], topK)
	if err != nil {
		return nil, usage, Err("vector search", err)
	}
	out := make([]contract.RagChunk, 0, len(matches))
	for _, m := range matches {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		out = append(out, contract.RagChunk{ID: m.ID, Text: m.Text, Score: m.Score})
	}
	return out, usage, nil
}
