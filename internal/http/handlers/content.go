package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/agentwriter-backend/internal/http/response"
	"github.com/yungbote/agentwriter-backend/internal/services"
)

type ContentHandler struct {
	contents services.ContentService
}

func NewContentHandler(contents services.ContentService) *ContentHandler {
	return &ContentHandler{contents: contents}
}

// POST /api/agents/:agentId/contents
func (h *ContentHandler) Create(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	agentID, ok := pathUUID(c, "agentId")
	if !ok {
		return
	}
	var req services.CreateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	row, err := h.contents.Create(c.Request.Context(), userID, agentID, req)
	if err != nil {
		respondErr(c, err, "create_content_failed")
		return
	}
	response.RespondAccepted(c, gin.H{"content": row})
}

// GET /api/contents/:id
func (h *ContentHandler) Get(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	row, err := h.contents.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondErr(c, err, "get_content_failed")
		return
	}
	response.RespondOK(c, gin.H{"content": row})
}

// GET /api/contents/:id/versions
func (h *ContentHandler) Versions(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	versions, err := h.contents.Versions(c.Request.Context(), userID, id)
	if err != nil {
		respondErr(c, err, "list_versions_failed")
		return
	}
	response.RespondOK(c, gin.H{"versions": versions})
}

// POST /api/contents/:id/regenerate
func (h *ContentHandler) Regenerate(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	row, err := h.contents.Regenerate(c.Request.Context(), userID, id)
	if err != nil {
		respondErr(c, err, "regenerate_content_failed")
		return
	}
	response.RespondAccepted(c, gin.H{"content": row})
}

// POST /api/contents/:id/approve
func (h *ContentHandler) Approve(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	row, err := h.contents.Approve(c.Request.Context(), userID, id)
	if err != nil {
		respondErr(c, err, "approve_content_failed")
		return
	}
	response.RespondOK(c, gin.H{"content": row})
}

// PUT /api/contents/:id/body
func (h *ContentHandler) SaveBody(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	version, err := h.contents.SaveEdit(c.Request.Context(), userID, id, req.Body)
	if err != nil {
		respondErr(c, err, "save_content_failed")
		return
	}
	response.RespondOK(c, gin.H{"version": version})
}
