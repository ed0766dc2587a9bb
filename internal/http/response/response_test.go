package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/agentwriter-backend/internal/platform/apierr"
)

func TestRespondAPIErrorHidesServerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	RespondAPIError(c, apierr.New(http.StatusInternalServerError, "create_content_failed", errors.New("pq: connection refused")))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got=%d", rec.Code)
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error.Code != "create_content_failed" || env.Error.Message != "internal error" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestRespondAPIErrorClientErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	RespondAPIError(c, apierr.BadRequest("invalid_layout", errors.New("unknown layout \"poem\"")))

	var env ErrorEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	if rec.Code != http.StatusBadRequest || env.Error.Message != "unknown layout \"poem\"" {
		t.Fatalf("unexpected response: %d %+v", rec.Code, env)
	}
}
