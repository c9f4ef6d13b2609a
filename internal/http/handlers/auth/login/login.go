// Package login implements the login endpoint issuing access tokens.
package login

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/response"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/sl"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/services/auth"
)

// Request carries the login form.
type Request struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
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
// @Summary Log in
// @Description Checks credentials and returns a signed access token.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Login form"
// @Success 200 {object} response.Response "Token issued"
// @Failure 400 {object} response.Response "Malformed or invalid body"
// @Failure 401 {object} response.Response "Unknown user or wrong password"
// @Failure 500 {object} response.Response "Login failed"
// @Router /auth/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

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

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		log.Error("invalid credentials", slog.String("username", req.Username))
		response.Error(w, r, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		log.Error("login failed", sl.Err(err))
		response.Error(w, r, http.StatusInternalServerError, "failed to log in")
		return
	}

	response.OK(w, r, http.StatusOK, "login successful", map[string]any{
		"token": token,
	})
}
