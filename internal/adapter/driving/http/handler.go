// Package httphandler serves a read-only JSON API over the harvested
// repositories and pull requests.
package httphandler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
	"github.com/ericfisherdev/prharvest/internal/domain/port/driven"
)

// List limits.
const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	repoStore driven.RepoStore
	prStore   driven.PRStore
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(repoStore driven.RepoStore, prStore driven.PRStore, logger *slog.Logger) *Handler {
	return &Handler{
		repoStore: repoStore,
		prStore:   prStore,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/repos", h.ListRepos)
	mux.HandleFunc("GET /api/v1/repos/{id}", h.GetRepo)
	mux.HandleFunc("GET /api/v1/repos/{id}/prs", h.ListRepoPRs)
	mux.HandleFunc("GET /api/v1/prs", h.ListPRs)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Stats returns repository and pull request counts.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repoStore.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to compute stats", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}

// ListRepos returns stored repositories filtered by ?status=all|pending|processed.
func (h *Handler) ListRepos(w http.ResponseWriter, r *http.Request) {
	status := model.RepoStatusAll
	if v := r.URL.Query().Get("status"); v != "" {
		status = model.RepoStatus(v)
	}
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status: expected all, pending or processed")
		return
	}

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	repos, err := h.repoStore.List(r.Context(), status, limit)
	if err != nil {
		h.logger.Error("failed to list repos", "status", string(status), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RepoResponse, 0, len(repos))
	for _, repo := range repos {
		resp = append(resp, toRepoResponse(repo))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetRepo returns a single repository by its GitHub ID.
func (h *Handler) GetRepo(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	repo, err := h.repoStore.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get repo", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if repo == nil {
		writeError(w, http.StatusNotFound, "repository not found")
		return
	}

	writeJSON(w, http.StatusOK, toRepoResponse(*repo))
}

// ListRepoPRs returns the accepted pull requests of one repository.
func (h *Handler) ListRepoPRs(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	repo, err := h.repoStore.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get repo", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if repo == nil {
		writeError(w, http.StatusNotFound, "repository not found")
		return
	}

	prs, err := h.prStore.ListByRepo(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list repo PRs", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toPRResponses(prs))
}

// ListPRs returns accepted pull requests, most recently validated first.
func (h *Handler) ListPRs(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	prs, err := h.prStore.ListAll(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list PRs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toPRResponses(prs))
}

// parseID reads the {id} path value. On failure it writes a 400 and returns false.
func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid repository id")
		return 0, false
	}
	return id, true
}

// parseLimit reads ?limit=, defaulting to 100 and capping at 1000. On failure
// it writes a 400 and returns false.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultListLimit, true
	}

	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "invalid limit: expected a positive integer")
		return 0, false
	}
	return min(n, maxListLimit), true
}
