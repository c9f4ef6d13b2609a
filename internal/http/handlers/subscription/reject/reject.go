// Package reject implements the admin action failing a pending payment.
// Rejection never happens automatically; a failed verification leaves the
// account payment_pending until an operator decides.
package reject

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/response"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/sl"
)

// Request optionally carries an operator note.
type Request struct {
	Note string `json:"note,omitempty"`
}

type Service interface {
	Reject(ctx context.Context, userUID, note string) error
}

type Handler struct {
	log     *slog.Logger
	billing Service
}

func New(log *slog.Logger, billingService Service) *Handler {
	return &Handler{log: log, billing: billingService}
}

// ServeHTTP godoc
// @Summary Reject a pending payment
// @Description Admin-only. Marks the user's pending payment as rejected and blocks access.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param userId path string true "Account uid"
// @Param request body Request false "Operator note"
// @Success 200 {object} response.Response "Rejected"
// @Failure 401 {object} response.Response "Not authenticated"
// @Failure 403 {object} response.Response "Not an admin"
// @Failure 500 {object} response.Response "Rejection failed"
// @Security BearerAuth
// @Router /subscriptions/reject/{userId} [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.reject"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID := chi.URLParam(r, "userId")
	if userUID == "" {
		response.Error(w, r, http.StatusBadRequest, "missing user id")
		return
	}

	var req Request
	if r.Body != nil {
		// The note is optional; an empty body is fine.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.billing.Reject(r.Context(), userUID, req.Note); err != nil {
		log.Error("failed to reject payment", sl.Err(err))
		response.Error(w, r, http.StatusInternalServerError, "failed to reject payment")
		return
	}

	response.OK(w, r, http.StatusOK, "payment rejected", nil)
}
