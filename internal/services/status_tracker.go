package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/agentwriter-backend/internal/data/repos"
	types "github.com/yungbote/agentwriter-backend/internal/domain"
	"github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
	"github.com/yungbote/agentwriter-backend/internal/realtime"
)

type EntityKind string

const (
	KindContent    EntityKind = "content"
	KindIdea       EntityKind = "idea"
	KindBrand      EntityKind = "brand"
	KindAgentIdeas EntityKind = "agent_ideas"
)

// EntityRef identifies one tracked status. Run and Hash, when set, narrow the
// write to the generation that issued it: a superseded run or brand document
// never overwrites a newer one.
type EntityRef struct {
	Kind    EntityKind
	ID      uuid.UUID
	OwnerID uuid.UUID
	Run     int
	Hash    string
}

func ContentRef(c *types.Content) EntityRef {
	return EntityRef{Kind: KindContent, ID: c.ID, OwnerID: c.UserID, Run: c.Run}
}

func BrandRef(a *types.Agent) EntityRef {
	return EntityRef{Kind: KindBrand, ID: a.ID, OwnerID: a.UserID, Hash: a.BrandDocumentHash}
}

func (r EntityRef) machine() (*content.Machine, error) {
	switch r.Kind {
	case KindContent:
		return content.ContentMachine, nil
	case KindIdea:
		return content.IdeaMachine, nil
	case KindBrand:
		return content.BrandMachine, nil
	case KindAgentIdeas:
		return content.IdeaRunMachine, nil
	}
	return nil, fmt.Errorf("unknown entity kind %q", r.Kind)
}

func (r EntityRef) event(status, message string) realtime.StatusChanged {
	ev := realtime.StatusChanged{Status: status, Message: message}
	switch r.Kind {
	case KindContent:
		ev.ContentID = r.ID.String()
	case KindIdea:
		ev.IdeaID = r.ID.String()
	case KindBrand:
		ev.BrandID = r.ID.String()
	case KindAgentIdeas:
		ev.AgentID = r.ID.String()
	}
	return ev
}

type StatusTracker interface {
	// SetStatus applies a legal transition and emits the event after commit.
	// A transition the machine or the row refuses returns ErrInvalidTransition
	// and emits nothing.
	SetStatus(ctx context.Context, ref EntityRef, status string, message string) error
	// Commit runs fn and then the status write in one transaction and emits
	// once it has committed. Either failing rolls both back.
	Commit(ctx context.Context, ref EntityRef, status string, message string, fn func(tx *gorm.DB) error) error
	// Announce emits the event for a status some other write already persisted.
	Announce(ctx context.Context, ref EntityRef, status string, message string)
}

type statusTracker struct {
	db      *gorm.DB
	repos   *repos.Repos
	emitter SSEEmitter
	log     *logger.Logger
}

func NewStatusTracker(db *gorm.DB, r *repos.Repos, emitter SSEEmitter, baseLog *logger.Logger) StatusTracker {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &statusTracker{
		db:      db,
		repos:   r,
		emitter: emitter,
		log:     baseLog.With("service", "StatusTracker"),
	}
}

func (t *statusTracker) SetStatus(ctx context.Context, ref EntityRef, status string, message string) error {
	return t.Commit(ctx, ref, status, message, nil)
}

func (t *statusTracker) Commit(ctx context.Context, ref EntityRef, status string, message string, fn func(tx *gorm.DB) error) error {
	m, err := ref.machine()
	if err != nil {
		return err
	}
	if ref.ID == uuid.Nil {
		return fmt.Errorf("%s: missing id", ref.Kind)
	}
	if !m.Known(status) {
		return fmt.Errorf("%s %s -> %q: %w", ref.Kind, ref.ID, status, content.ErrInvalidTransition)
	}
	w := repos.StatusWrite{
		ID:      ref.ID,
		From:    m.Sources(status),
		To:      status,
		Message: message,
		Guard:   guardFor(ref),
	}

	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if fn != nil {
			if err := fn(tx); err != nil {
				return err
			}
		}
		ok, err := t.write(dbctx.Context{Ctx: ctx, Tx: tx}, ref.Kind, w)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s %s -> %q: %w", ref.Kind, ref.ID, status, content.ErrInvalidTransition)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, content.ErrInvalidTransition) {
			t.log.Error("status write failed", "kind", ref.Kind, "id", ref.ID, "status", status, "error", err)
		}
		return err
	}

	t.emit(ctx, ref, status, message)
	return nil
}

func (t *statusTracker) Announce(ctx context.Context, ref EntityRef, status string, message string) {
	if ref.ID == uuid.Nil {
		return
	}
	t.emit(ctx, ref, status, message)
}

func (t *statusTracker) write(dbc dbctx.Context, kind EntityKind, w repos.StatusWrite) (bool, error) {
	switch kind {
	case KindContent:
		return t.repos.Content.UpdateStatus(dbc, w)
	case KindIdea:
		return t.repos.Idea.UpdateStatus(dbc, w)
	case KindBrand:
		return t.repos.Agent.UpdateBrandStatus(dbc, w)
	case KindAgentIdeas:
		return t.repos.Agent.UpdateIdeaStatus(dbc, w)
	}
	return false, fmt.Errorf("unknown entity kind %q", kind)
}

func guardFor(ref EntityRef) map[string]interface{} {
	guard := map[string]interface{}{}
	switch ref.Kind {
	case KindContent:
		if ref.Run > 0 {
			guard["run"] = ref.Run
		}
	case KindAgentIdeas:
		if ref.Run > 0 {
			guard["idea_run"] = ref.Run
		}
	case KindBrand:
		if ref.Hash != "" {
			guard["brand_document_hash"] = ref.Hash
		}
	}
	return guard
}

// emit publishes on the entity channel and, when known, the owner's channel.
func (t *statusTracker) emit(ctx context.Context, ref EntityRef, status, message string) {
	ev := ref.event(status, message)
	t.emitter.Emit(ctx, realtime.SSEMessage{
		Channel: ref.ID.String(),
		Event:   realtime.SSEEventStatusChanged,
		Data:    ev,
	})
	if ref.OwnerID != uuid.Nil {
		t.emitter.Emit(ctx, realtime.SSEMessage{
			Channel: ref.OwnerID.String(),
			Event:   realtime.SSEEventStatusChanged,
			Data:    ev,
		})
	}
}
