// Package contract holds the queue names and the job payloads passed between
// pipeline stages. Each payload embeds the previous one, so the JSON of a later
// stage is always a superset of every earlier stage's fields.
package contract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/agentwriter-backend/internal/domain/content"
)

const (
	QueueContentPlanning    = "content.planning"
	QueueContentResearching = "content.researching"
	QueueContentWriting     = "content.writing"
	QueueContentEditing     = "content.editing"
	QueueContentGrammar     = "content.grammar"
	QueueContentPostProcess = "content.postprocess"

	QueueIdeasPlan        = "ideas.plan"
	QueueIdeasGenerate    = "ideas.generate"
	QueueIdeasGrammar     = "ideas.grammar"
	QueueIdeasPostProcess = "ideas.postprocess"

	QueueChunksSave = "chunks.save"
)

const (
	EntityContent = "content"
	EntityAgent   = "agent"
)

const (
	EditorEditing = "editing"
	EditorGrammar = "grammar"
)

var ErrInvalidPayload = errors.New("invalid payload")

// BrandNamespace is the vector namespace holding an agent's brand chunks.
func BrandNamespace(agentID uuid.UUID) string { return "agent:" + agentID.String() }

// JobKey collapses redeliveries of one logical step of one run.
func JobKey(queueName string, entityID uuid.UUID, run int) string {
	return fmt.Sprintf("%s:%s:%d", queueName, entityID, run)
}

// Persona is the agent snapshot taken when a run starts.
type Persona struct {
	Name     string `json:"name"`
	Purpose  string `json:"purpose"`
	Tone     string `json:"tone,omitempty"`
	Audience string `json:"audience,omitempty"`
}

func PersonaFromAgent(a *content.Agent) Persona {
	if a == nil {
		return Persona{}
	}
	return Persona{Name: a.Name, Purpose: a.Purpose, Tone: a.Tone, Audience: a.Audience}
}

type ContentRequest struct {
	Description string         `json:"description"`
	Layout      content.Layout `json:"layout"`
}

type RagChunk struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type SearchSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type PlanningPayload struct {
	AgentID        uuid.UUID      `json:"agent_id"`
	ContentID      uuid.UUID      `json:"content_id"`
	UserID         uuid.UUID      `json:"user_id"`
	EditorUserID   *uuid.UUID     `json:"editor_user_id,omitempty"`
	Run            int            `json:"run"`
	Persona        Persona        `json:"persona"`
	ContentRequest ContentRequest `json:"content_request"`
}

func (p PlanningPayload) Validate() error {
	switch {
	case p.AgentID == uuid.Nil:
		return fmt.Errorf("%w: agent_id is required", ErrInvalidPayload)
	case p.ContentID == uuid.Nil:
		return fmt.Errorf("%w: content_id is required", ErrInvalidPayload)
	case p.UserID == uuid.Nil:
		return fmt.Errorf("%w: user_id is required", ErrInvalidPayload)
	case p.Run < 1:
		return fmt.Errorf("%w: run must be positive", ErrInvalidPayload)
	case strings.TrimSpace(p.ContentRequest.Description) == "":
		return fmt.Errorf("%w: description is empty", ErrInvalidPayload)
	case !p.ContentRequest.Layout.Valid():
		return fmt.Errorf("%w: unknown layout %q", ErrInvalidPayload, p.ContentRequest.Layout)
	case strings.TrimSpace(p.Persona.Purpose) == "":
		return fmt.Errorf("%w: persona purpose is missing", ErrInvalidPayload)
	}
	return nil
}

// Planning returns the request head every later payload carries.
func (p PlanningPayload) Planning() PlanningPayload { return p }

type ResearchingPayload struct {
	PlanningPayload
	Keywords       []string   `json:"keywords"`
	RagChunks      []RagChunk `json:"rag_chunks"`
	OptimizedQuery string     `json:"optimized_query"`
}

func (p ResearchingPayload) Validate() error {
	if err := p.PlanningPayload.Validate(); err != nil {
		return err
	}
	if len(p.Keywords) == 0 {
		return fmt.Errorf("%w: keywords are empty", ErrInvalidPayload)
	}
	if strings.TrimSpace(p.OptimizedQuery) == "" {
		return fmt.Errorf("%w: optimized_query is empty", ErrInvalidPayload)
	}
	return nil
}

type WritingPayload struct {
	ResearchingPayload
	WebSearchContent string         `json:"web_search_content"`
	BrandDocument    string         `json:"brand_document"`
	SearchSources    []SearchSource `json:"search_sources"`
}

func (p WritingPayload) Validate() error {
	if err := p.ResearchingPayload.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(p.WebSearchContent) == "" {
		return fmt.Errorf("%w: web_search_content is empty", ErrInvalidPayload)
	}
	return nil
}

// EditingPayload is consumed by both the editing and the grammar-check stage.
type EditingPayload struct {
	WritingPayload
	Draft string `json:"draft"`
}

func (p EditingPayload) Validate() error {
	if err := p.WritingPayload.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(p.Draft) == "" {
		return fmt.Errorf("%w: draft is empty", ErrInvalidPayload)
	}
	return nil
}

type PostProcessingPayload struct {
	EditingPayload
	EditedDraft string `json:"edited_draft"`
	Editor      string `json:"editor"`
}

func (p PostProcessingPayload) Validate() error {
	if err := p.EditingPayload.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(p.EditedDraft) == "" {
		return fmt.Errorf("%w: edited_draft is empty", ErrInvalidPayload)
	}
	return nil
}

// NextEditQueue routes a written draft to the editing or grammar branch.
func NextEditQueue(layout content.Layout) string {
	if layout.UsesEditor() {
		return QueueContentEditing
	}
	return QueueContentGrammar
}

type IdeaDraft struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Layout      content.Layout `json:"layout"`
	Keywords    []string       `json:"keywords,omitempty"`
}

type IdeaPlanPayload struct {
	AgentID uuid.UUID `json:"agent_id"`
	UserID  uuid.UUID `json:"user_id"`
	Run     int       `json:"run"`
	Count   int       `json:"count"`
	Topic   string    `json:"topic,omitempty"`
	Persona Persona   `json:"persona"`
}

func (p IdeaPlanPayload) Validate() error {
	switch {
	case p.AgentID == uuid.Nil:
		return fmt.Errorf("%w: agent_id is required", ErrInvalidPayload)
	case p.UserID == uuid.Nil:
		return fmt.Errorf("%w: user_id is required", ErrInvalidPayload)
	case p.Run < 1:
		return fmt.Errorf("%w: run must be positive", ErrInvalidPayload)
	case p.Count < 1 || p.Count > 20:
		return fmt.Errorf("%w: count must be between 1 and 20", ErrInvalidPayload)
	case strings.TrimSpace(p.Persona.Purpose) == "":
		return fmt.Errorf("%w: persona purpose is missing", ErrInvalidPayload)
	}
	return nil
}

// Plan returns the head every idea payload embeds.
func (p IdeaPlanPayload) Plan() IdeaPlanPayload { return p }

type IdeaGeneratePayload struct {
	IdeaPlanPayload
	Keywords  []string   `json:"keywords"`
	RagChunks []RagChunk `json:"rag_chunks"`
}

type IdeaGrammarPayload struct {
	IdeaGeneratePayload
	Ideas []IdeaDraft `json:"ideas"`
}

func (p IdeaGrammarPayload) Validate() error {
	if err := p.IdeaPlanPayload.Validate(); err != nil {
		return err
	}
	if len(p.Ideas) == 0 {
		return fmt.Errorf("%w: ideas are empty", ErrInvalidPayload)
	}
	return nil
}

type IdeaPostProcessPayload struct {
	IdeaGrammarPayload
	CheckedIdeas []IdeaDraft `json:"checked_ideas"`
}

func (p IdeaPostProcessPayload) Validate() error {
	if err := p.IdeaGrammarPayload.Validate(); err != nil {
		return err
	}
	if len(p.CheckedIdeas) == 0 {
		return fmt.Errorf("%w: checked_ideas are empty", ErrInvalidPayload)
	}
	return nil
}

type ChunkText struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type ChunkSavePayload struct {
	AgentID      uuid.UUID   `json:"agent_id"`
	UserID       uuid.UUID   `json:"user_id"`
	DocumentHash string      `json:"document_hash"`
	Batch        int         `json:"batch"`
	TotalBatches int         `json:"total_batches"`
	Chunks       []ChunkText `json:"chunks"`
}

func (p ChunkSavePayload) Validate() error {
	switch {
	case p.AgentID == uuid.Nil || p.UserID == uuid.Nil:
		return fmt.Errorf("%w: agent_id and user_id are required", ErrInvalidPayload)
	case p.DocumentHash == "":
		return fmt.Errorf("%w: document_hash is required", ErrInvalidPayload)
	case p.TotalBatches < 1 || p.Batch < 0 || p.Batch >= p.TotalBatches:
		return fmt.Errorf("%w: batch %d of %d", ErrInvalidPayload, p.Batch, p.TotalBatches)
	case len(p.Chunks) == 0:
		return fmt.Errorf("%w: no chunks", ErrInvalidPayload)
	}
	return nil
}


// ChunkJobKey collapses redeliveries of one batch of one document version.
func ChunkJobKey(agentID uuid.UUID, hash string, batch int) string {
	return fmt.Sprintf("%s:%s:%s:%d", QueueChunksSave, agentID, hash, batch)
}
