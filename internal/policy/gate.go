package policy

import (
	"context"
	"errors"

	"github.com/diewo77/pharmacy-pos/internal/models"
)

// Sentinel errors returned by Gate.Authorize.
var (
	ErrForbidden       = errors.New("forbidden")
	ErrNoPolicyDefined = errors.New("no policy defined for resource")
)

// Policy decides whether actor may perform action on a specific target.
// Route permissions are checked before; a Policy only adds per-record rules.
type Policy interface {
	Can(ctx context.Context, actor uint, action Action, target any) bool
}

// Gate is a registry of record-level policies keyed by resource type.
type Gate struct {
	policies map[string]Policy
}

func NewGate() *Gate {
	return &Gate{policies: make(map[string]Policy)}
}

// Register adds a policy for a resource type, replacing any previous one.
func (g *Gate) Register(resourceType string, p Policy) {
	g.policies[resourceType] = p
}

// Authorize returns ErrForbidden for a zero actor or a denied action and
// ErrNoPolicyDefined when resourceType has no policy.
func (g *Gate) Authorize(ctx context.Context, actor uint, action Action, resourceType string, target any) error {
	if actor == 0 {
		return ErrForbidden
	}
	p, ok := g.policies[resourceType]
	if !ok {
		return ErrNoPolicyDefined
	}
	if !p.Can(ctx, actor, action, target) {
		return ErrForbidden
	}
	return nil
}

// UserChange is the target of a user policy check.
type UserChange struct {
	UserID uint
	Role   *models.Role
	Active *bool
}

// SelfLockoutPolicy stops an admin from deactivating or demoting their own
// account, which could leave the pharmacy without an administrator.
type SelfLockoutPolicy struct{}

func (SelfLockoutPolicy) Can(_ context.Context, actor uint, action Action, target any) bool {
	change, ok := target.(UserChange)
	if !ok || change.UserID != actor {
		return true
	}
	switch action {
	case ActionDelete:
		return false
	case ActionUpdate:
		if change.Role != nil && *change.Role != models.RoleAdmin {
			return false
		}
		if change.Active != nil && !*change.Active {
			return false
		}
	}
	return true
}
