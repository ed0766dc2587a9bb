package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/agentwriter-backend/internal/http/response"
	"github.com/yungbote/agentwriter-backend/internal/services"
)

type IdeaHandler struct {
	ideas services.IdeaService
}

func NewIdeaHandler(ideas services.IdeaService) *IdeaHandler {
	return &IdeaHandler{ideas: ideas}
}

type generateIdeasRequest struct {
	Count int    `json:"count"`
	Topic string `json:"topic"`
}

type bulkIdeasRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required"`
}

// POST /api/agents/:agentId/ideas/generate
func (h *IdeaHandler) Generate(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	agentID, ok := pathUUID(c, "agentId")
	if !ok {
		return
	}
	var req generateIdeasRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	run, err := h.ideas.Generate(c.Request.Context(), userID, agentID, req.Count, req.Topic)
	if err != nil {
		respondErr(c, err, "generate_ideas_failed")
		return
	}
	response.RespondAccepted(c, gin.H{"agent_id": agentID, "run": run})
}

// POST /api/ideas/bulk-approve
func (h *IdeaHandler) BulkApprove(c *gin.Context) {
	h.bulk(c, h.ideas.BulkApprove, "bulk_approve_failed")
}

// POST /api/ideas/bulk-reject
func (h *IdeaHandler) BulkReject(c *gin.Context) {
	h.bulk(c, h.ideas.BulkReject, "bulk_reject_failed")
}

type bulkOp func(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (services.BulkResult, error)

func (h *IdeaHandler) bulk(c *gin.Context, op bulkOp, code string) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	var req bulkIdeasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	result, err := op(c.Request.Context(), userID, req.IDs)
	if err != nil {
		respondErr(c, err, code)
		return
	}
	response.RespondOK(c, gin.H{"result": result})
}
