package realtime

type SSEEvent string

const (
	SSEEventStatusChanged SSEEvent = "StatusChanged"
	SSEEventIdeaCreated   SSEEvent = "IdeaCreated"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// StatusChanged is the payload of every status event. Exactly one of the id
// fields is set; subscribers filter by it.
type StatusChanged struct {
	ContentID string `json:"content_id,omitempty"`
	IdeaID    string `json:"idea_id,omitempty"`
	BrandID   string `json:"brand_id,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}
