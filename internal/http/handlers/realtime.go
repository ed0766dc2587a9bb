package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/agentwriter-backend/internal/http/response"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
	"github.com/yungbote/agentwriter-backend/internal/realtime"
	"github.com/yungbote/agentwriter-backend/internal/services"
)

type RealtimeHandler struct {
	log    *logger.Logger
	hub    *realtime.SSEHub
	access services.ChannelAccess
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, access services.ChannelAccess) *RealtimeHandler {
	return &RealtimeHandler{
		log:    log.With("handler", "RealtimeHandler"),
		hub:    hub,
		access: access,
	}
}

// GET /api/events?channel=<entity id>
//
// The stream always carries the caller's user channel. Each extra channel
// must name an entity the caller owns.
func (h *RealtimeHandler) Events(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	channels := []string{userID.String()}
	for _, raw := range c.QueryArray("channel") {
		for _, ch := range strings.Split(raw, ",") {
			ch = strings.TrimSpace(ch)
			if ch == "" || ch == userID.String() {
				continue
			}
			allowed, err := h.access.CanSubscribe(c.Request.Context(), userID, ch)
			if err != nil {
				respondErr(c, err, "subscribe_failed")
				return
			}
			if !allowed {
				response.RespondError(c, http.StatusForbidden, "forbidden", errors.New("channel not accessible"))
				return
			}
			channels = append(channels, ch)
		}
	}

	client := h.hub.NewSSEClient(userID)
	for _, ch := range channels {
		h.hub.AddChannel(client, ch)
	}
	h.log.Debug("SSE stream open", "user_id", userID, "channels", len(channels))
	h.hub.ServeHTTP(c.Writer, c.Request, client)
	h.hub.CloseClient(client)
}
