package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/diewo77/pharmacy-pos/auth"
	"github.com/diewo77/pharmacy-pos/httpx"
	"github.com/diewo77/pharmacy-pos/internal/models"
	"github.com/diewo77/pharmacy-pos/internal/services"
	"github.com/diewo77/pharmacy-pos/validation"
	"github.com/sirupsen/logrus"
)

// PermissionLister reports the permissions of the current user.
type PermissionLister interface {
	PermissionsOf(ctx context.Context) []string
}

type AuthHandler struct {
	users *services.UserService
	perms PermissionLister
	log   logrus.FieldLogger
}

func NewAuthHandler(users *services.UserService, perms PermissionLister, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{users: users, perms: perms, log: log}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Login checks credentials and answers with a bearer token. It also sets the
// session cookie for browser clients.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if v := validation.Struct(req); !v.Empty() {
		writeError(w, h.log, services.NewValidationError(v))
		return
	}
	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if services.KindOf(err) == services.KindUnauthorized {
			h.log.WithField("email", req.Email).Info("login rejected")
		}
		writeError(w, h.log, err)
		return
	}
	token, exp, err := auth.IssueToken(user.ID, string(user.Role))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	auth.CreateSession(w, user.ID)
	httpx.OK(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, User: user}, "login successful")
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	httpx.OK(w, http.StatusOK, nil, "logged out")
}

type profileResponse struct {
	User        *models.User `json:"user"`
	Permissions []string     `json:"permissions"`
}

// Profile returns the authenticated user and what they may do.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}
	user, err := h.users.Get(r.Context(), uid)
	if err != nil {
		if services.KindOf(err) == services.KindNotFound {
			httpx.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
			return
		}
		writeError(w, h.log, err)
		return
	}
	perms := []string{}
	if h.perms != nil {
		perms = h.perms.PermissionsOf(r.Context())
	}
	httpx.OK(w, http.StatusOK, profileResponse{User: user, Permissions: perms}, "")
}
