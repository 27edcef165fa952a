package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// indexRequest selects the object types of an index maintenance task
type indexRequest struct {
	ObjectTypes []string `json:"object_types" example:"post,comment"`
	Platform    string   `json:"platform,omitempty" example:"ocw"`
}

func (r indexRequest) types() []domain.ObjectType {
	if len(r.ObjectTypes) == 0 {
		return nil
	}
	out := make([]domain.ObjectType, len(r.ObjectTypes))
	for i, t := range r.ObjectTypes {
		out[i] = domain.ObjectType(t)
	}
	return out
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the search cluster, database and redis
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	result := map[string]string{"status": "ready"}
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", "check", name, "error", err)
			result[name] = err.Error()
			result["status"] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		result[name] = "ok"
	}
	writeJSON(w, status, result)
}

// handleVersion godoc
// @Summary      Get API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Search endpoints

// handleSearch godoc
// @Summary      Search
// @Description  Runs a query DSL body against every index, restricted to what the caller may see.
// @Description  Store rejections of the query are returned with the store's status code.
// @Tags         Search
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      object  true  "Query DSL body"
// @Success      200      {object}  object
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Invalid token"
// @Router       /search [post]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query domain.Query
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if query == nil {
		query = domain.Query{}
	}

	resp, err := s.searchService.ExecuteSearch(r.Context(), GetPrincipal(r.Context()), query)
	if err != nil {
		s.writeServiceError(w, err, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRelated godoc
// @Summary      Related posts
// @Tags         Search
// @Produce      json
// @Security     BearerAuth
// @Param        post_id  path      string  true  "Post ID"
// @Success      200      {object}  object
// @Router       /related/{post_id} [get]
func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("post_id")
	if postID == "" {
		writeError(w, http.StatusBadRequest, "post id is required")
		return
	}

	resp, err := s.searchService.FindRelatedDocuments(r.Context(), GetPrincipal(r.Context()), postID)
	if err != nil {
		s.writeServiceError(w, err, "related search failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSimilar godoc
// @Summary      Similar learning resources
// @Tags         Search
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.SimilarResourceRequest  true  "Seed resource"
// @Success      200      {array}   object
// @Router       /similar [post]
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	var seed domain.SimilarResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&seed); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hits, err := s.searchService.FindSimilarResources(r.Context(), GetPrincipal(r.Context()), seed)
	if err != nil {
		s.writeServiceError(w, err, "similar search failed")
		return
	}
	if hits == nil {
		hits = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, hits)
}

// Admin endpoints

// handleRecreateIndex godoc
// @Summary      Recreate indices
// @Description  Schedules a rebuild of the given object types' indices, or all when none are given
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      indexRequest  false  "Object types"
// @Success      202      {object}  domain.Task
// @Failure      400      {object}  ErrorResponse  "Unknown object type"
// @Failure      403      {object}  ErrorResponse  "Admin access required"
// @Router       /admin/reindex [post]
func (s *Server) handleRecreateIndex(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeIndexRequest(w, r)
	if !ok {
		return
	}

	task, err := s.indexService.ScheduleRecreateIndex(r.Context(), req.types())
	if err != nil {
		s.writeServiceError(w, err, "failed to schedule reindex")
		return
	}
	writeJSON(w, http.StatusAccepted, task)
}

// handleUpdateIndex godoc
// @Summary      Update indices in place
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      indexRequest  false  "Object types and platform"
// @Success      202      {object}  domain.Task
// @Router       /admin/update-index [post]
func (s *Server) handleUpdateIndex(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeIndexRequest(w, r)
	if !ok {
		return
	}

	task, err := s.indexService.ScheduleUpdateIndex(r.Context(), req.types(), req.Platform)
	if err != nil {
		s.writeServiceError(w, err, "failed to schedule index update")
		return
	}
	writeJSON(w, http.StatusAccepted, task)
}

// handleGetTask godoc
// @Summary      Get task status
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      404  {object}  ErrorResponse  "Task not found"
// @Router       /admin/tasks/{id} [get]
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.indexService.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err, "failed to get task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// decodeIndexRequest accepts an empty body as "all object types".
func decodeIndexRequest(w http.ResponseWriter, r *http.Request) (indexRequest, bool) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	return req, true
}

// writeServiceError maps service errors to responses. Client errors from the
// search cluster keep their status and body.
func (s *Server) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var storeErr *domain.StoreError
	switch {
	case errors.As(err, &storeErr) && storeErr.IsClientError():
		if json.Valid([]byte(storeErr.Body)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(storeErr.StatusCode)
			_, _ = io.WriteString(w, storeErr.Body)
			return
		}
		writeError(w, storeErr.StatusCode, storeErr.Body)
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownObjectType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrReindexInProgress):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
