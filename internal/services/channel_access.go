package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/agentwriter-backend/internal/data/repos"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
)

// ChannelAccess decides which realtime channels a caller may subscribe to.
// Channels are entity ids; a caller always owns their own user channel.
type ChannelAccess interface {
	CanSubscribe(ctx context.Context, userID uuid.UUID, channel string) (bool, error)
}

type channelAccess struct {
	repos *repos.Repos
}

func NewChannelAccess(r *repos.Repos) ChannelAccess {
	return &channelAccess{repos: r}
}

func (a *channelAccess) CanSubscribe(ctx context.Context, userID uuid.UUID, channel string) (bool, error) {
	id, err := uuid.Parse(strings.TrimSpace(channel))
	if err != nil || userID == uuid.Nil {
		return false, nil
	}
	if id == userID {
		return true, nil
	}
	dbc := dbctx.Context{Ctx: ctx}
	c, err := a.repos.Content.GetByID(dbc, id)
	if err != nil {
		return false, err
	}
	if c != nil {
		return c.UserID == userID, nil
	}
	agent, err := a.repos.Agent.GetByID(dbc, id)
	if err != nil {
		return false, err
	}
	if agent != nil {
		return agent.UserID == userID, nil
	}
	idea, err := a.repos.Idea.GetByID(dbc, id)
	if err != nil {
		return false, err
	}
	return idea != nil && idea.UserID == userID, nil
}
