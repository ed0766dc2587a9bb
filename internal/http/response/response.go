package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/agentwriter-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAPIError writes an *apierr.Error. Server errors never echo the
// underlying error text.
func RespondAPIError(c *gin.Context, err *apierr.Error) {
	if err == nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= 500 {
		c.Error(err)
		RespondError(c, status, err.Code, nil)
		return
	}
	RespondError(c, status, err.Code, err.Err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}
