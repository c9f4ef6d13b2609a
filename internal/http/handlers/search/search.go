// Package search implements the gated feature surface. The endpoint itself
// is a thin access probe; requests only reach it after the lifecycle gate
// has allowed them.
package search

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/middlewarectx"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/response"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/sl"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/services/lifecycle"
)

type Service interface {
	CheckAccess(ctx context.Context, userUID string) (*lifecycle.Verdict, error)
}

type Handler struct {
	log  *slog.Logger
	gate Service
}

func New(log *slog.Logger, gate Service) *Handler {
	return &Handler{log: log, gate: gate}
}

// ServeHTTP godoc
// @Summary Check feature access
// @Description Returns the lifecycle verdict for the caller. Reaching this endpoint at all means access is granted.
// @Tags Search
// @Produce  json
// @Success 200 {object} response.Response "Access granted"
// @Failure 401 {object} response.Response "Not authenticated"
// @Failure 403 {object} response.Response "Access denied by lifecycle state"
// @Security BearerAuth
// @Router /search/access [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.search.access"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		response.Error(w, r, http.StatusUnauthorized, "user identification missing")
		return
	}

	verdict, err := h.gate.CheckAccess(r.Context(), userUID)
	if err != nil {
		log.Error("failed to check access", sl.Err(err))
		response.Error(w, r, http.StatusInternalServerError, "failed to check access")
		return
	}

	response.OK(w, r, http.StatusOK, "access granted", verdict)
}
