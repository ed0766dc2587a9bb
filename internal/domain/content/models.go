package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Layout string

const (
	LayoutArticle   Layout = "article"
	LayoutTutorial  Layout = "tutorial"
	LayoutChangelog Layout = "changelog"
	LayoutInterview Layout = "interview"
)

func (l Layout) Valid() bool {
	switch l {
	case LayoutArticle, LayoutTutorial, LayoutChangelog, LayoutInterview:
		return true
	}
	return false
}

// UsesEditor reports whether the layout goes through the editing branch
// rather than the grammar-check branch.
func (l Layout) UsesEditor() bool {
	return l == LayoutArticle || l == LayoutTutorial
}

type Content struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AgentID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"agent_id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Description    string         `gorm:"column:description;type:text;not null" json:"description"`
	Layout         Layout         `gorm:"column:layout;not null" json:"layout"`
	Status         Status         `gorm:"column:status;not null;index" json:"status"`
	Title          string         `gorm:"column:title" json:"title"`
	Body           string         `gorm:"column:body;type:text" json:"body"`
	Meta           datatypes.JSON `gorm:"column:meta;type:jsonb" json:"meta"`
	Stats          datatypes.JSON `gorm:"column:stats;type:jsonb" json:"stats"`
	ErrorMessage   string         `gorm:"column:error_message" json:"error_message,omitempty"`
	CurrentVersion int            `gorm:"column:current_version;not null;default:0" json:"current_version"`
	Run            int            `gorm:"column:run;not null;default:1" json:"run"`
	CreatedAt      time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Content) TableName() string { return "content" }

func (c *Content) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ContentVersion is an immutable body snapshot. Versions are gapless per content.
type ContentVersion struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ContentID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_content_version" json:"content_id"`
	Version       int            `gorm:"column:version;not null;uniqueIndex:idx_content_version" json:"version"`
	Diff          string         `gorm:"column:diff;type:text" json:"diff"`
	LineDiff      datatypes.JSON `gorm:"column:line_diff;type:jsonb" json:"line_diff"`
	ChangedFields datatypes.JSON `gorm:"column:changed_fields;type:jsonb" json:"changed_fields"`
	UserID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
}

func (ContentVersion) TableName() string { return "content_version" }

func (v *ContentVersion) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

type Idea struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AgentID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"agent_id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title       string         `gorm:"column:title;not null" json:"title"`
	Description string         `gorm:"column:description;type:text" json:"description"`
	Layout      Layout         `gorm:"column:layout;not null" json:"layout"`
	Status      IdeaStatus     `gorm:"column:status;not null;index" json:"status"`
	ContentID   *uuid.UUID     `gorm:"type:uuid;column:content_id" json:"content_id,omitempty"`
	Keywords    datatypes.JSON `gorm:"column:keywords;type:jsonb" json:"keywords"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Idea) TableName() string { return "idea" }

func (i *Idea) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Agent is the persona content is written for. Its brand document and idea runs
// carry their own tracked statuses.
type Agent struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Name              string         `gorm:"column:name;not null" json:"name"`
	Purpose           string         `gorm:"column:purpose;type:text" json:"purpose"`
	Tone              string         `gorm:"column:tone" json:"tone"`
	Audience          string         `gorm:"column:audience" json:"audience"`
	BrandDocument     string         `gorm:"column:brand_document;type:text" json:"brand_document"`
	BrandDocumentHash string         `gorm:"column:brand_document_hash" json:"brand_document_hash,omitempty"`
	BrandStatus       string         `gorm:"column:brand_status" json:"brand_status"`
	BrandMessage      string         `gorm:"column:brand_message" json:"brand_message,omitempty"`
	IdeaStatus        string         `gorm:"column:idea_status" json:"idea_status"`
	IdeaMessage       string         `gorm:"column:idea_message" json:"idea_message,omitempty"`
	IdeaRun           int            `gorm:"column:idea_run;not null;default:0" json:"idea_run"`
	CreatedAt         time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Agent) TableName() string { return "agent" }

func (a *Agent) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// BrandChunkBatch records that one batch of one brand document version was
// embedded. The document is ready once every batch has a row.
type BrandChunkBatch struct {
	AgentID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"agent_id"`
	DocumentHash string    `gorm:"column:document_hash;primaryKey" json:"document_hash"`
	BatchIndex   int       `gorm:"column:batch_index;primaryKey;autoIncrement:false" json:"batch_index"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

func (BrandChunkBatch) TableName() string { return "brand_chunk_batch" }
