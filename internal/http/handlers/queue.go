package handlers

import (
	"context"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/agentwriter-backend/internal/http/response"
	"github.com/yungbote/agentwriter-backend/internal/jobs/queue"
)

type QueueCounter interface {
	Counts(ctx context.Context) (map[string]queue.Counts, error)
}

type QueueHandler struct {
	counter QueueCounter
}

func NewQueueHandler(counter QueueCounter) *QueueHandler {
	return &QueueHandler{counter: counter}
}

type queueStats struct {
	Name string `json:"name"`
	queue.Counts
}

// GET /api/queues
func (h *QueueHandler) List(c *gin.Context) {
	counts, err := h.counter.Counts(c.Request.Context())
	if err != nil {
		respondErr(c, err, "queue_counts_failed")
		return
	}
	out := make([]queueStats, 0, len(counts))
	for name, n := range counts {
		out = append(out, queueStats{Name: name, Counts: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	response.RespondOK(c, gin.H{"queues": out})
}
