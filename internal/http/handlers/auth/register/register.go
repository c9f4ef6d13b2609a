// Package register implements the signup endpoint. Registration opens the
// free trial immediately.
package register

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/response"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/sl"
)

// Request carries the signup form.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6"`
}

type Handler struct {
	log      *slog.Logger
	auth     Service
	validate *validator.Validate
}

func New(log *slog.Logger, auth Service) *Handler {
	return &Handler{
		log:      log,
		auth:     auth,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Register a new account
// @Description Creates an account and starts its 14-day free trial.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Signup form"
// @Success 201 {object} response.Response "Account created"
// @Failure 400 {object} response.Response "Malformed or invalid body"
// @Failure 500 {object} response.Response "Registration failed"
// @Router /auth/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.Error(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		response.ValidationError(w, r, err.(validator.ValidationErrors))
		return
	}

	uid, err := h.auth.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		log.Error("registration failed", sl.Err(err))
		response.Error(w, r, http.StatusInternalServerError, "failed to register user")
		return
	}

	response.OK(w, r, http.StatusCreated, "user created successfully", map[string]any{
		"user_uid": uid,
		"username": req.Username,
	})
}
