package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
)

const maxRequestBodyBytes = 4 << 10

// LeaderboardService is the application surface the handlers serve.
type LeaderboardService interface {
	Rankings(ctx context.Context, q domain.RankQuery) (domain.RankingResult, error)
	AgentDetail(ctx context.Context, agentID string) (domain.AgentDetail, error)
	Invalidate(ctx context.Context, reason string) error
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	svc     LeaderboardService
	health  HealthCheck
	logger  *slog.Logger
	version string
}

// NewHandlers creates handlers for svc. A nil health check always passes.
func NewHandlers(svc LeaderboardService, health HealthCheck, logger *slog.Logger, version string) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{svc: svc, health: health, logger: logger, version: version}
}

// HandleRankings serves GET /v1/leaderboard/rankings.
func (h *Handlers) HandleRankings(w http.ResponseWriter, r *http.Request) {
	q, err := parseRankQuery(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	result, err := h.svc.Rankings(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// HandleAgentDetail serves GET /v1/leaderboard/agents/{agent_id}.
func (h *Handlers) HandleAgentDetail(w http.ResponseWriter, r *http.Request) {
	agentID := strings.TrimSpace(r.PathValue("agent_id"))
	if agentID == "" {
		writeError(w, r, http.StatusBadRequest, ErrorDetail{Code: ErrCodeBadRequest, Message: "agent_id is required"})
		return
	}

	detail, err := h.svc.AgentDetail(r.Context(), agentID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, detail)
}

type invalidateRequest struct {
	Reason string `json:"reason"`
}

// HandleInvalidate serves POST /v1/leaderboard/invalidate. The body is
// optional.
func (h *Handlers) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	var req invalidateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, ErrorDetail{Code: ErrCodeBadRequest, Message: "invalid request body: " + err.Error()})
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "api"
	}

	if err := h.svc.Invalidate(r.Context(), reason); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "invalidated", "reason": reason})
}

// HandleHealth serves GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "health check failed", "error", err)
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, r, code, map[string]string{"status": status, "version": h.version})
}

func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
	}
	writeError(w, r, status, detail)
}

// parseRankQuery maps query parameters onto a RankQuery. An absent limit
// selects the default page size; an explicit limit must be a positive
// integer.
func parseRankQuery(r *http.Request) (domain.RankQuery, error) {
	params := r.URL.Query()
	q := domain.RankQuery{
		SortBy:     domain.SortKey(strings.TrimSpace(params.Get("sortBy"))),
		FilterRole: strings.TrimSpace(params.Get("filterRole")),
		FilterTier: domain.Tier(strings.ToLower(strings.TrimSpace(params.Get("filterTier")))),
		SearchText: params.Get("search"),
	}

	if raw := strings.TrimSpace(params.Get("limit")); params.Has("limit") {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			verr := domain.NewValidationError("RankQuery")
			verr.Add(fmt.Errorf("%w: limit must be a positive integer, got %q", domain.ErrInvalidLimit, raw))
			return domain.RankQuery{}, verr
		}
		q.Limit = n
	}
	return q, nil
}

// decodeJSON decodes a JSON request body into the target struct.
func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}
