package policy

import (
	"context"
	"net/http"
	"time"

	"github.com/diewo77/pharmacy-pos/auth"
	"github.com/diewo77/pharmacy-pos/httpx"
	"github.com/diewo77/pharmacy-pos/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuthGate combines role permissions with record-level policies for the
// authenticated user found in the request context.
type AuthGate struct {
	Resolver *CachedResolver
	gate     *Gate
	log      logrus.FieldLogger
}

// NewAuthGate builds a gate resolving roles from db, cached for ttl.
func NewAuthGate(db *gorm.DB, ttl time.Duration, log logrus.FieldLogger) *AuthGate {
	g := NewGate()
	g.Register(ResourceUser, SelfLockoutPolicy{})
	return &AuthGate{
		Resolver: NewCachedResolver(NewDBResolver(db), ttl),
		gate:     g,
		log:      log.WithField("module", "policy"),
	}
}

// Can reports whether the current user holds resource:action.
func (a *AuthGate) Can(ctx context.Context, resourceType string, action Action) bool {
	uid, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return false
	}
	profile, err := a.Resolver.Resolve(ctx, uid)
	if err != nil {
		a.log.WithError(err).WithField("user_id", uid).Error("resolve profile")
		return false
	}
	return profile.HasPermission(NewPermission(resourceType, action))
}

// Authorize applies the record-level policy of resourceType to target on
// behalf of the current user.
func (a *AuthGate) Authorize(ctx context.Context, action Action, resourceType string, target any) error {
	uid, _ := auth.UserIDFromContext(ctx)
	return a.gate.Authorize(ctx, uid, action, resourceType, target)
}

// ProfileOf returns the profile of the current user, nil without access.
func (a *AuthGate) ProfileOf(ctx context.Context) *Profile {
	uid, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return nil
	}
	profile, err := a.Resolver.Resolve(ctx, uid)
	if err != nil {
		a.log.WithError(err).WithField("user_id", uid).Error("resolve profile")
		return nil
	}
	return profile
}

// CanChangeUser applies the user policy to an update of target.
func (a *AuthGate) CanChangeUser(ctx context.Context, target uint, role *models.Role, active *bool) bool {
	return a.Authorize(ctx, ActionUpdate, ResourceUser, UserChange{UserID: target, Role: role, Active: active}) == nil
}

// CanDeleteUser applies the user policy to the deactivation of target.
func (a *AuthGate) CanDeleteUser(ctx context.Context, target uint) bool {
	return a.Authorize(ctx, ActionDelete, ResourceUser, UserChange{UserID: target}) == nil
}

// PermissionsOf lists the permissions of the current user.
func (a *AuthGate) PermissionsOf(ctx context.Context) []string {
	out := []string{}
	for _, p := range a.ProfileOf(ctx).Permissions() {
		out = append(out, string(p))
	}
	return out
}

// InvalidateUser forgets the cached profile of userID.
func (a *AuthGate) InvalidateUser(userID uint) {
	a.Resolver.Invalidate(userID)
}

// RequirePermission answers 401 without a user and 403 when the user's
// role lacks resource:action.
func (a *AuthGate) RequirePermission(resourceType string, action Action) func(http.Handler) http.Handler {
	return a.require(NewPermission(resourceType, action))
}

// RequireAdmin guards staff management routes.
func (a *AuthGate) RequireAdmin() func(http.Handler) http.Handler {
	return a.require(All(ResourceUser))
}

func (a *AuthGate) require(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				httpx.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
				return
			}
			profile, err := a.Resolver.Resolve(r.Context(), uid)
			if err != nil {
				a.log.WithError(err).WithField("user_id", uid).Error("resolve profile")
				httpx.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
				return
			}
			if profile == nil {
				httpx.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
				return
			}
			if !profile.HasPermission(perm) {
				httpx.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
