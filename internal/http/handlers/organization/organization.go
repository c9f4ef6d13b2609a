// Package organization implements the HTTP surface of multi-seat group
// accounts: creation, invite links, joining and member listing.
package organization

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/middlewarectx"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/response"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/sl"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
	orgservice "github.com/patentsbrowser/patentsBrowser-sub002/internal/services/organization"
)

type Service interface {
	Create(ctx context.Context, adminUID, name string) (*models.Organization, error)
	Invite(ctx context.Context, callerUID, orgUID string) (*models.InviteLink, error)
	Join(ctx context.Context, userUID, token string) (*models.Organization, error)
	Members(ctx context.Context, callerUID, orgUID string) ([]*models.OrgMember, error)
}

type Handler struct {
	log      *slog.Logger
	orgs     Service
	validate *validator.Validate
}

func New(log *slog.Logger, orgs Service) *Handler {
	return &Handler{
		log:      log,
		orgs:     orgs,
		validate: validator.New(),
	}
}

func (h *Handler) requestLog(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func callerUID(r *http.Request) (string, bool) {
	uid, ok := r.Context().Value(middlewarectx.UserUID).(string)
	return uid, ok && uid != ""
}

// Create godoc
// @Summary Create an organization
// @Description Opens a new organization with the caller as its admin member.
// @Tags Organizations
// @Accept  json
// @Produce  json
// @Param request body models.DummyOrganization true "Organization data"
// @Success 201 {object} response.Response "Organization created"
// @Failure 400 {object} response.Response "Malformed or invalid body"
// @Failure 401 {object} response.Response "Not authenticated"
// @Failure 500 {object} response.Response "Creation failed"
// @Security BearerAuth
// @Router /organizations [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.requestLog(r, "handlers.organization.create")

	uid, ok := callerUID(r)
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "user identification missing")
		return
	}

	var req models.DummyOrganization
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

	org, err := h.orgs.Create(r.Context(), uid, req.Name)
	if err != nil {
		log.Error("failed to create organization", sl.Err(err))
		response.Error(w, r, http.StatusInternalServerError, "failed to create organization")
		return
	}

	response.OK(w, r, http.StatusCreated, "organization created successfully", org)
}

// Invite godoc
// @Summary Issue an invite link
// @Description Admin member only. Returns a single-use token valid for seven days.
// @Tags Organizations
// @Produce  json
// @Param orgId path string true "Organization uid"
// @Success 201 {object} response.Response "Invite token"
// @Failure 401 {object} response.Response "Not authenticated"
// @Failure 403 {object} response.Response "Caller is not the organization admin"
// @Failure 500 {object} response.Response "Invite creation failed"
// @Security BearerAuth
// @Router /organizations/{orgId}/invite [post]
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	log := h.requestLog(r, "handlers.organization.invite")

	uid, ok := callerUID(r)
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "user identification missing")
		return
	}

	orgUID := chi.URLParam(r, "orgId")
	invite, err := h.orgs.Invite(r.Context(), uid, orgUID)
	if errors.Is(err, orgservice.ErrNotAdmin) {
		response.Error(w, r, http.StatusForbidden, "only the organization admin may invite")
		return
	}
	if err != nil {
		log.Error("failed to create invite", sl.Err(err))
		response.Error(w, r, http.StatusInternalServerError, "failed to create invite")
		return
	}

	response.OK(w, r, http.StatusCreated, "invite created successfully", map[string]any{
		"token":      invite.Token,
		"expires_at": invite.ExpiresAt,
	})
}

// Join godoc
// @Summary Join an organization
// @Description Redeems a single-use invite token and adds the caller as a member.
// @Tags Organizations
// @Produce  json
// @Param token path string true "Invite token"
// @Success 200 {object} response.Response "Joined"
// @Failure 400 {object} response.Response "Invalid, used or expired token"
// @Failure 401 {object} response.Response "Not authenticated"
// @Failure 409 {object} response.Response "Already a member"
// @Failure 500 {object} response.Response "Join failed"
// @Security BearerAuth
// @Router /organizations/join/{token} [post]
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	log := h.requestLog(r, "handlers.organization.join")

	uid, ok := callerUID(r)
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "user identification missing")
		return
	}

	token := chi.URLParam(r, "token")
	org, err := h.orgs.Join(r.Context(), uid, token)
	switch {
	case errors.Is(err, orgservice.ErrInviteInvalid):
		response.Error(w, r, http.StatusBadRequest, "invite link is invalid or expired")
		return
	case errors.Is(err, orgservice.ErrAlreadyMember):
		response.Error(w, r, http.StatusConflict, "already a member of this organization")
		return
	case err != nil:
		log.Error("failed to join organization", sl.Err(err))
		response.Error(w, r, http.StatusInternalServerError, "failed to join organization")
		return
	}

	response.OK(w, r, http.StatusOK, "joined organization successfully", org)
}

// Members godoc
// @Summary List organization members
// @Description Members only. Returns the seats of the organization.
// @Tags Organizations
// @Produce  json
// @Param orgId path string true "Organization uid"
// @Success 200 {object} response.Response "Member list"
// @Failure 401 {object} response.Response "Not authenticated"
// @Failure 403 {object} response.Response "Caller is not a member"
// @Failure 500 {object} response.Response "Lookup failed"
// @Security BearerAuth
// @Router /organizations/{orgId}/members [get]
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	log := h.requestLog(r, "handlers.organization.members")

	uid, ok := callerUID(r)
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "user identification missing")
		return
	}

	orgUID := chi.URLParam(r, "orgId")
	members, err := h.orgs.Members(r.Context(), uid, orgUID)
	if errors.Is(err, orgservice.ErrNotAdmin) {
		response.Error(w, r, http.StatusForbidden, "not a member of this organization")
		return
	}
	if err != nil {
		log.Error("failed to list members", sl.Err(err))
		response.Error(w, r, http.StatusInternalServerError, "failed to list members")
		return
	}

	response.OK(w, r, http.StatusOK, "members retrieved successfully", members)
}
