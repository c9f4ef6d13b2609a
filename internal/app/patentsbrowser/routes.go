package patentsbrowser

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/handlers/auth/login"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/handlers/auth/register"
	orghandler "github.com/patentsbrowser/patentsBrowser-sub002/internal/http/handlers/organization"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/handlers/search"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/handlers/subscription/cancel"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/handlers/subscription/current"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/handlers/subscription/order"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/handlers/subscription/plans"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/handlers/subscription/reject"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/handlers/subscription/trial"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/handlers/subscription/verify"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/handlers/subscription/webhook"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/handlers/trialops"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/middlewarectx"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/jwt"
	authservice "github.com/patentsbrowser/patentsBrowser-sub002/internal/services/auth"
	billingservice "github.com/patentsbrowser/patentsBrowser-sub002/internal/services/billing"
	catalogservice "github.com/patentsbrowser/patentsBrowser-sub002/internal/services/catalog"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/services/lifecycle"
	orgservice "github.com/patentsbrowser/patentsBrowser-sub002/internal/services/organization"
	sweepservice "github.com/patentsbrowser/patentsBrowser-sub002/internal/services/sweep"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/storage/repository"
)

// Services carries everything the router wires into handlers.
type Services struct {
	Auth    *authservice.Service
	Billing *billingservice.Service
	Catalog *catalogservice.Service
	Orgs    *orgservice.Service
	Sweeper *sweepservice.Service
	Engine  *lifecycle.Engine
	Tokens  jwt.Maker
	Users   *repository.Storage
	Secret  string
}

// RegisterRoutes mounts every endpoint of the API service.
func RegisterRoutes(r chi.Router, logger *slog.Logger, s *Services) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	orgHandler := orghandler.New(logger, s.Orgs)
	trialOps := trialops.New(logger, s.Sweeper, s.Billing, s.Users)

	r.Route("/api/v1", func(r chi.Router) {
		// Open endpoints.
		r.Post("/auth/register", register.New(logger, s.Auth).ServeHTTP)
		r.Post("/auth/login", login.New(logger, s.Auth).ServeHTTP)
		r.Get("/subscriptions/plans", plans.New(logger, s.Catalog).ServeHTTP)
		r.Post("/subscriptions/webhook", webhook.New(logger, s.Billing, s.Secret).ServeHTTP)

		// Authenticated endpoints. Billing stays reachable in every
		// lifecycle state so lapsed accounts can pay their way back in.
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Tokens, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))

			r.Post("/subscriptions/order", order.New(logger, s.Billing).ServeHTTP)
			r.Post("/subscriptions/verify", verify.New(logger, s.Billing).ServeHTTP)
			r.Post("/subscriptions/trial", trial.New(logger, s.Billing).ServeHTTP)
			r.Get("/subscriptions/user", current.New(logger, s.Billing).ServeHTTP)
			r.Post("/subscriptions/cancel", cancel.New(logger, s.Billing).ServeHTTP)

			r.Post("/organizations", orgHandler.Create)
			r.Post("/organizations/join/{token}", orgHandler.Join)
			r.Post("/organizations/{orgId}/invite", orgHandler.Invite)
			r.Get("/organizations/{orgId}/members", orgHandler.Members)

			// Feature endpoints sit behind the lifecycle gate.
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.SubscriptionGate(s.Engine, logger))
				r.Get("/search/access", search.New(logger, s.Engine).ServeHTTP)
			})
		})

		// Admin endpoints.
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Tokens, logger))
			r.Use(middlewarectx.AdminOnly(logger))

			r.Post("/trial/trigger-check", trialOps.TriggerCheck)
			r.Get("/trial/statistics", trialOps.Statistics)
			r.Get("/trial/users", trialOps.Users)
			r.Post("/trial/extend/{userId}", trialOps.Extend)
			r.Post("/subscriptions/reject/{userId}", reject.New(logger, s.Billing).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
