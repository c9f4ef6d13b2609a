package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/response"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/sl"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/services/lifecycle"
)

// GateService answers whether an account may use gated features.
type GateService interface {
	CheckAccess(ctx context.Context, userUID string) (*lifecycle.Verdict, error)
}

// SubscriptionGate blocks requests from accounts whose lifecycle state does
// not grant access. Denials answer 403 with the verdict in the envelope so
// the client can render an upgrade prompt. It must run after JWTMiddleware.
func SubscriptionGate(gate GateService, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.SubscriptionGate"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			userUID, ok := r.Context().Value(UserUID).(string)
			if !ok || userUID == "" {
				log.Error("user identification missing")
				response.Error(w, r, http.StatusUnauthorized, "user identification missing")
				return
			}

			verdict, err := gate.CheckAccess(r.Context(), userUID)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, lifecycle.ErrUserNotFound):
				response.Error(w, r, http.StatusNotFound, "user not found")
			case errors.Is(err, lifecycle.ErrTrialExpired):
				response.Denied(w, r, "trial period has expired", verdict)
			case errors.Is(err, lifecycle.ErrInactive):
				response.Denied(w, r, "subscription is inactive", verdict)
			case errors.Is(err, lifecycle.ErrCancelled):
				response.Denied(w, r, "subscription was cancelled", verdict)
			case errors.Is(err, lifecycle.ErrRejected):
				response.Denied(w, r, "payment was rejected", verdict)
			case errors.Is(err, lifecycle.ErrInvalidState):
				response.Denied(w, r, "subscription state does not allow access", verdict)
			default:
				log.Error("failed to check subscription access", sl.Err(err))
				response.Error(w, r, http.StatusInternalServerError, "internal service error")
			}
		})
	}
}
