package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/http/response"
	"github.com/yungbote/agentwriter-backend/internal/platform/apierr"
	"github.com/yungbote/agentwriter-backend/internal/platform/ctxutil"
	"github.com/yungbote/agentwriter-backend/internal/services"
)

// toAPIError maps service sentinels onto HTTP statuses. Anything else is a 500
// carrying fallback as its code.
func toAPIError(err error, fallback string) *apierr.Error {
	var ae *apierr.Error
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, services.ErrValidation):
		return apierr.BadRequest("invalid_request", err)
	case errors.Is(err, services.ErrUnauthorized):
		return apierr.New(http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, services.ErrForbidden):
		return apierr.Forbidden("forbidden", err)
	case errors.Is(err, services.ErrNotFound):
		return apierr.NotFound("not_found", err)
	case errors.Is(err, content.ErrInvalidTransition), errors.Is(err, services.ErrConflict):
		return apierr.Conflict("conflict", err)
	default:
		return apierr.As(err, fallback)
	}
}

func respondErr(c *gin.Context, err error, fallback string) {
	response.RespondAPIError(c, toAPIError(err, fallback))
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+name, err)
		return uuid.Nil, false
	}
	return id, true
}

func requestUser(c *gin.Context) (uuid.UUID, bool) {
	userID := ctxutil.UserID(c.Request.Context())
	if userID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("not authenticated"))
		return uuid.Nil, false
	}
	return userID, true
}
