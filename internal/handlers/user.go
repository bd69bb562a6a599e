package handlers

import (
	"context"
	"net/http"

	"github.com/diewo77/pharmacy-pos/httpx"
	"github.com/diewo77/pharmacy-pos/internal/models"
	"github.com/diewo77/pharmacy-pos/internal/services"
	"github.com/sirupsen/logrus"
)

// UserGuard vets changes to staff accounts and drops cached roles once
// they change.
type UserGuard interface {
	CanChangeUser(ctx context.Context, target uint, role *models.Role, active *bool) bool
	CanDeleteUser(ctx context.Context, target uint) bool
	InvalidateUser(userID uint)
}

// UserHandler manages staff accounts. Routes are admin-only.
type UserHandler struct {
	users *services.UserService
	guard UserGuard
	log   logrus.FieldLogger
}

func NewUserHandler(users *services.UserService, guard UserGuard, log logrus.FieldLogger) *UserHandler {
	return &UserHandler{users: users, guard: guard, log: log}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, users, "")
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, u, "")
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.UserInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	u, err := h.users.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusCreated, u, "user created")
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	var patch services.UserPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, h.log, err)
		return
	}
	if !h.guard.CanChangeUser(r.Context(), id, patch.Role, patch.Active) {
		httpx.Fail(w, http.StatusForbidden, "forbidden", "you cannot demote or deactivate your own account", nil)
		return
	}
	u, err := h.users.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.guard.InvalidateUser(id)
	httpx.OK(w, http.StatusOK, u, "user updated")
}

// Delete deactivates the account.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if !h.guard.CanDeleteUser(r.Context(), id) {
		httpx.Fail(w, http.StatusForbidden, "forbidden", "you cannot deactivate your own account", nil)
		return
	}
	if err := h.users.Deactivate(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}
	h.guard.InvalidateUser(id)
	httpx.OK(w, http.StatusOK, nil, "user deactivated")
}
