package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/agentwriter-backend/internal/http/response"
	"github.com/yungbote/agentwriter-backend/internal/services"
)

type BrandHandler struct {
	brands services.BrandService
}

func NewBrandHandler(brands services.BrandService) *BrandHandler {
	return &BrandHandler{brands: brands}
}

// PUT /api/agents/:agentId/brand-document
func (h *BrandHandler) UpdateDocument(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	agentID, ok := pathUUID(c, "agentId")
	if !ok {
		return
	}
	var req struct {
		Document string `json:"document"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	agent, err := h.brands.UpdateDocument(c.Request.Context(), userID, agentID, req.Document)
	if err != nil {
		respondErr(c, err, "update_brand_document_failed")
		return
	}
	response.RespondAccepted(c, gin.H{
		"agent_id":      agent.ID,
		"brand_status":  agent.BrandStatus,
		"document_hash": agent.BrandDocumentHash,
	})
}
