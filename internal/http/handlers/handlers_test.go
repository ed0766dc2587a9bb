package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	"github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs/queue"
	"github.com/yungbote/agentwriter-backend/internal/pkg/bulk"
	"github.com/yungbote/agentwriter-backend/internal/platform/ctxutil"
	"github.com/yungbote/agentwriter-backend/internal/services"
)

type fakeContents struct {
	services.ContentService
	err error
}

func (f *fakeContents) Create(_ context.Context, userID, agentID uuid.UUID, req services.CreateContentRequest) (*types.Content, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.Content{ID: uuid.New(), AgentID: agentID, UserID: userID, Description: req.Description, Layout: req.Layout, Status: content.StatusPending, Run: 1}, nil
}

func (f *fakeContents) Approve(_ context.Context, _, contentID uuid.UUID) (*types.Content, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.Content{ID: contentID, Status: content.StatusApproved}, nil
}

type fakeIdeas struct {
	services.IdeaService
	gotIDs []uuid.UUID
	err    error
}

func (f *fakeIdeas) BulkApprove(_ context.Context, _ uuid.UUID, ids []uuid.UUID) (services.BulkResult, error) {
	f.gotIDs = ids
	if f.err != nil {
		return services.BulkResult{}, f.err
	}
	return services.BulkResult{
		TotalSelected:   len(ids),
		ApprovableCount: len(ids) - 1,
		ApprovedCount:   len(ids) - 2,
		Failed:          []bulk.Failure{{ID: ids[0].String(), Error: "approval failed"}},
	}, nil
}

type fakeCounter map[string]queue.Counts

func (f fakeCounter) Counts(context.Context) (map[string]queue.Counts, error) { return f, nil }

func newTestRouter(userID uuid.UUID, register func(r *gin.RouterGroup)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		if userID != uuid.Nil {
			ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: userID})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	})
	register(api)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateContentReturnsAccepted(t *testing.T) {
	h := NewContentHandler(&fakeContents{})
	r := newTestRouter(uuid.New(), func(api *gin.RouterGroup) {
		api.POST("/agents/:agentId/contents", h.Create)
	})

	rec := do(t, r, http.MethodPost, "/api/agents/"+uuid.NewString()+"/contents", map[string]string{"description": "Explain OAuth", "layout": "article"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var out struct {
		Content types.Content `json:"content"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, content.StatusPending, out.Content.Status)
	assert.Equal(t, "Explain OAuth", out.Content.Description)

	rec = do(t, r, http.MethodPost, "/api/agents/not-a-uuid/contents", map[string]string{"description": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServiceErrorsMapToStatuses(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("layout: %w", services.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("agent: %w", services.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("content: %w", services.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("approve: %w", content.ErrInvalidTransition), http.StatusConflict},
		{fmt.Errorf("database is gone"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := NewContentHandler(&fakeContents{err: tc.err})
		r := newTestRouter(uuid.New(), func(api *gin.RouterGroup) {
			api.POST("/contents/:id/approve", h.Approve)
		})
		rec := do(t, r, http.MethodPost, "/api/contents/"+uuid.NewString()+"/approve", nil)
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
		if tc.want == http.StatusInternalServerError {
			assert.NotContains(t, rec.Body.String(), "database is gone")
		}
	}
}

func TestBulkApproveReturnsPartialResult(t *testing.T) {
	ideas := &fakeIdeas{}
	h := NewIdeaHandler(ideas)
	r := newTestRouter(uuid.New(), func(api *gin.RouterGroup) {
		api.POST("/ideas/bulk-approve", h.BulkApprove)
	})
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	rec := do(t, r, http.MethodPost, "/api/ideas/bulk-approve", map[string]any{"ids": ids})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, ids, ideas.gotIDs)

	var out struct {
		Result services.BulkResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 3, out.Result.TotalSelected)
	assert.Equal(t, 2, out.Result.ApprovableCount)
	assert.Equal(t, 1, out.Result.ApprovedCount)
	require.Len(t, out.Result.Failed, 1)

	ideas.err = fmt.Errorf("idea owned by another user: %w", services.ErrForbidden)
	rec = do(t, r, http.MethodPost, "/api/ideas/bulk-approve", map[string]any{"ids": ids})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/ideas/bulk-approve", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlersRequireUser(t *testing.T) {
	h := NewContentHandler(&fakeContents{})
	r := newTestRouter(uuid.Nil, func(api *gin.RouterGroup) {
		api.POST("/contents/:id/approve", h.Approve)
	})
	rec := do(t, r, http.MethodPost, "/api/contents/"+uuid.NewString()+"/approve", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestQueueListIsSorted(t *testing.T) {
	h := NewQueueHandler(fakeCounter{
		"content.writing":  {Waiting: 2},
		"chunks.save":      {Active: 1},
		"content.planning": {Completed: 9},
	})
	r := newTestRouter(uuid.New(), func(api *gin.RouterGroup) {
		api.GET("/queues", h.List)
	})
	rec := do(t, r, http.MethodGet, "/api/queues", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Queues []struct {
			Name      string `json:"name"`
			Waiting   int64  `json:"waiting"`
			Completed int64  `json:"completed"`
		} `json:"queues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Queues, 3)
	assert.Equal(t, "chunks.save", out.Queues[0].Name)
	assert.Equal(t, "content.planning", out.Queues[1].Name)
	assert.Equal(t, int64(9), out.Queues[1].Completed)
	assert.Equal(t, int64(2), out.Queues[2].Waiting)
}

func TestHealthReportsFailingCheck(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return fmt.Errorf("dial tcp: refused") },
	})
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", h.HealthCheck)
	rec := do(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "refused")
}
