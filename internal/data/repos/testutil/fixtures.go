package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	"github.com/yungbote/agentwriter-backend/internal/domain/content"
)

func SeedAgent(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID) *types.Agent {
	tb.Helper()
	a := &types.Agent{
		ID:       uuid.New(),
		UserID:   userID,
		Name:     "Ada",
		Purpose:  "Explain developer tooling to engineering leads",
		Tone:     "plain",
		Audience: "engineers",
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed agent: %v", err)
	}
	return a
}

func SeedContent(tb testing.TB, ctx context.Context, tx *gorm.DB, agent *types.Agent, layout content.Layout, status content.Status) *types.Content {
	tb.Helper()
	c := &types.Content{
		ID:          uuid.New(),
		AgentID:     agent.ID,
		UserID:      agent.UserID,
		Description: "Explain OAuth",
		Layout:      layout,
		Status:      status,
		Meta:        datatypes.JSON([]byte("{}")),
		Stats:       datatypes.JSON([]byte("{}")),
		Run:         1,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed content: %v", err)
	}
	return c
}

func SeedIdea(tb testing.TB, ctx context.Context, tx *gorm.DB, agent *types.Agent, title string, status content.IdeaStatus) *types.Idea {
	tb.Helper()
	i := &types.Idea{
		ID:          uuid.New(),
		AgentID:     agent.ID,
		UserID:      agent.UserID,
		Title:       title,
		Description: title + " in depth",
		Layout:      content.LayoutArticle,
		Status:      status,
		Keywords:    datatypes.JSON([]byte("[]")),
	}
	if err := tx.WithContext(ctx).Create(i).Error; err != nil {
		tb.Fatalf("seed idea: %v", err)
	}
	return i
}
