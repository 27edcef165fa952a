package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
)

// Mock services for testing

type mockTokenValidator struct {
	validateFn func(ctx context.Context, token string) (*domain.Principal, error)
}

func (m *mockTokenValidator) ValidateToken(ctx context.Context, token string) (*domain.Principal, error) {
	return m.validateFn(ctx, token)
}

// testValidator accepts the literal tokens "member", "admin" and "expired"
func testValidator() *mockTokenValidator {
	return &mockTokenValidator{validateFn: func(_ context.Context, token string) (*domain.Principal, error) {
		switch token {
		case "member":
			return &domain.Principal{UserID: 7, Username: "alice", Role: domain.RoleMember}, nil
		case "admin":
			return &domain.Principal{UserID: 1, Username: "root", Role: domain.RoleAdmin}, nil
		case "expired":
			return nil, domain.ErrTokenExpired
		default:
			return nil, domain.ErrTokenInvalid
		}
	}}
}

type mockSearchService struct {
	executeFn func(ctx context.Context, user *domain.Principal, query domain.Query) (domain.SearchResponse, error)
	relatedFn func(ctx context.Context, user *domain.Principal, postID string) (domain.SearchResponse, error)
	similarFn func(ctx context.Context, user *domain.Principal, seed domain.SimilarResourceRequest) ([]map[string]any, error)
}

func (m *mockSearchService) ExecuteSearch(ctx context.Context, user *domain.Principal, query domain.Query) (domain.SearchResponse, error) {
	if m.executeFn != nil {
		return m.executeFn(ctx, user, query)
	}
	return nil, errors.New("not implemented")
}

func (m *mockSearchService) FindRelatedDocuments(ctx context.Context, user *domain.Principal, postID string) (domain.SearchResponse, error) {
	if m.relatedFn != nil {
		return m.relatedFn(ctx, user, postID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockSearchService) FindSimilarResources(ctx context.Context, user *domain.Principal, seed domain.SimilarResourceRequest) ([]map[string]any, error) {
	if m.similarFn != nil {
		return m.similarFn(ctx, user, seed)
	}
	return nil, errors.New("not implemented")
}

type mockIndexService struct {
	recreateFn func(ctx context.Context, types []domain.ObjectType) (*domain.Task, error)
	updateFn   func(ctx context.Context, types []domain.ObjectType, platform string) (*domain.Task, error)
	getTaskFn  func(ctx context.Context, id string) (*domain.Task, error)
}

func (m *mockIndexService) ScheduleRecreateIndex(ctx context.Context, types []domain.ObjectType) (*domain.Task, error) {
	return m.recreateFn(ctx, types)
}

func (m *mockIndexService) ScheduleUpdateIndex(ctx context.Context, types []domain.ObjectType, platform string) (*domain.Task, error) {
	return m.updateFn(ctx, types, platform)
}

func (m *mockIndexService) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return m.getTaskFn(ctx, id)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(search *mockSearchService, index *mockIndexService, checks map[string]Pinger) http.Handler {
	if search == nil {
		search = &mockSearchService{}
	}
	if index == nil {
		index = &mockIndexService{}
	}
	cfg := DefaultConfig()
	cfg.Version = "1.2.3"
	cfg.Logger = discardLogger()
	return NewServer(cfg, search, index, testValidator(), checks).Handler()
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndVersion(t *testing.T) {
	h := newTestServer(nil, nil, nil)

	rr := do(t, h, "GET", "/health", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = do(t, h, "GET", "/version", "", "")
	assert.JSONEq(t, `{"version":"1.2.3"}`, rr.Body.String())
}

func TestReadyHandler(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	rr := do(t, newTestServer(nil, nil, map[string]Pinger{"elasticsearch": ok, "redis": ok}), "GET", "/ready", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ready","elasticsearch":"ok","redis":"ok"}`, rr.Body.String())

	rr = do(t, newTestServer(nil, nil, map[string]Pinger{"elasticsearch": ok, "redis": down}), "GET", "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"status":"unavailable","elasticsearch":"ok","redis":"connection refused"}`, rr.Body.String())
}

func TestHandleSearch_PassesPrincipalAndQuery(t *testing.T) {
	var gotUser *domain.Principal
	var gotQuery domain.Query
	search := &mockSearchService{executeFn: func(_ context.Context, user *domain.Principal, query domain.Query) (domain.SearchResponse, error) {
		gotUser, gotQuery = user, query
		return domain.SearchResponse{"hits": map[string]any{"hits": []any{}}}, nil
	}}
	h := newTestServer(search, nil, nil)

	rr := do(t, h, "POST", "/api/v1/search", "member", `{"query":{"match_all":{}},"size":5}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"hits":{"hits":[]}}`, rr.Body.String())
	assert.Equal(t, "alice", gotUser.Username)
	assert.Equal(t, float64(5), gotQuery["size"])

	rr = do(t, h, "POST", "/api/v1/search", "", ``)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, gotUser.IsAnonymous())
	assert.Equal(t, domain.Query{}, gotQuery)
}

func TestHandleSearch_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		token      string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"invalid json", `{`, "", nil, http.StatusBadRequest, `{"error":"invalid request body"}`},
		{"invalid token", `{}`, "garbage", nil, http.StatusUnauthorized, `{"error":"invalid token"}`},
		{
			"store client error keeps status",
			`{}`, "",
			&domain.StoreError{Op: "search", StatusCode: 400, Body: `{"error":{"type":"parsing_exception"}}`},
			http.StatusBadRequest, `{"error":{"type":"parsing_exception"}}`,
		},
		{
			"store client error with text body",
			`{}`, "",
			&domain.StoreError{Op: "search", StatusCode: 404, Body: "no such index"},
			http.StatusNotFound, `{"error":"no such index"}`,
		},
		{
			"store throttling keeps status",
			`{}`, "",
			&domain.StoreError{Op: "search", StatusCode: 429, Body: `{"error":{"type":"es_rejected_execution_exception"}}`},
			http.StatusTooManyRequests, `{"error":{"type":"es_rejected_execution_exception"}}`,
		},
		{
			"store server error",
			`{}`, "",
			&domain.StoreError{Op: "search", StatusCode: 503},
			http.StatusInternalServerError, `{"error":"search failed"}`,
		},
		{"permission lookup failure", `{}`, "member", errors.New("db down"), http.StatusInternalServerError, `{"error":"search failed"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			search := &mockSearchService{executeFn: func(context.Context, *domain.Principal, domain.Query) (domain.SearchResponse, error) {
				return nil, tt.err
			}}
			rr := do(t, newTestServer(search, nil, nil), "POST", "/api/v1/search", tt.token, tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.JSONEq(t, tt.wantBody, rr.Body.String())
		})
	}
}

func TestHandleRelated(t *testing.T) {
	var gotID string
	search := &mockSearchService{relatedFn: func(_ context.Context, _ *domain.Principal, postID string) (domain.SearchResponse, error) {
		gotID = postID
		return domain.SearchResponse{"hits": map[string]any{"total": 0}}, nil
	}}

	rr := do(t, newTestServer(search, nil, nil), "GET", "/api/v1/related/abc123", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "abc123", gotID)
}

func TestHandleSimilar(t *testing.T) {
	var gotSeed domain.SimilarResourceRequest
	search := &mockSearchService{similarFn: func(_ context.Context, _ *domain.Principal, seed domain.SimilarResourceRequest) ([]map[string]any, error) {
		gotSeed = seed
		return nil, nil
	}}
	h := newTestServer(search, nil, nil)

	rr := do(t, h, "POST", "/api/v1/similar", "", `{"id":3,"object_type":"course","title":"Python"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
	assert.Equal(t, domain.SimilarResourceRequest{ID: 3, ObjectType: domain.ObjectTypeCourse, Title: "Python"}, gotSeed)

	search.similarFn = func(context.Context, *domain.Principal, domain.SimilarResourceRequest) ([]map[string]any, error) {
		return nil, domain.ErrInvalidInput
	}
	rr = do(t, h, "POST", "/api/v1/similar", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleRecreateIndex(t *testing.T) {
	var gotTypes []domain.ObjectType
	index := &mockIndexService{recreateFn: func(_ context.Context, types []domain.ObjectType) (*domain.Task, error) {
		gotTypes = types
		return domain.NewRecreateIndexTask(types), nil
	}}
	h := newTestServer(nil, index, nil)

	rr := do(t, h, "POST", "/api/v1/admin/reindex", "member", `{}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = do(t, h, "POST", "/api/v1/admin/reindex", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, h, "POST", "/api/v1/admin/reindex", "admin", `{"object_types":["post","comment"]}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, []domain.ObjectType{domain.ObjectTypePost, domain.ObjectTypeComment}, gotTypes)

	var task domain.Task
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &task))
	assert.Equal(t, domain.TaskTypeRecreateIndex, task.Type)

	rr = do(t, h, "POST", "/api/v1/admin/reindex", "admin", ``)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Nil(t, gotTypes)

	index.recreateFn = func(context.Context, []domain.ObjectType) (*domain.Task, error) {
		return nil, domain.ErrUnknownObjectType
	}
	rr = do(t, h, "POST", "/api/v1/admin/reindex", "admin", `{"object_types":["bogus"]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleUpdateIndexAndGetTask(t *testing.T) {
	scheduled := domain.NewUpdateIndexTask([]domain.ObjectType{domain.ObjectTypeCourse}, "ocw")
	index := &mockIndexService{
		updateFn: func(_ context.Context, types []domain.ObjectType, platform string) (*domain.Task, error) {
			assert.Equal(t, "ocw", platform)
			return scheduled, nil
		},
		getTaskFn: func(_ context.Context, id string) (*domain.Task, error) {
			if id == scheduled.ID {
				return scheduled, nil
			}
			return nil, domain.ErrNotFound
		},
	}
	h := newTestServer(nil, index, nil)

	rr := do(t, h, "POST", "/api/v1/admin/update-index", "admin", `{"object_types":["course"],"platform":"ocw"}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)

	rr = do(t, h, "GET", "/api/v1/admin/tasks/"+scheduled.ID, "admin", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, "GET", "/api/v1/admin/tasks/missing", "admin", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWriteServiceError_ReindexInProgress(t *testing.T) {
	index := &mockIndexService{recreateFn: func(context.Context, []domain.ObjectType) (*domain.Task, error) {
		return nil, domain.ErrReindexInProgress
	}}

	rr := do(t, newTestServer(nil, index, nil), "POST", "/api/v1/admin/reindex", "admin", `{}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
}
