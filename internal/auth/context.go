// Package auth carries the authenticated identity through request contexts.
package auth

import "context"

// Household membership roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// AuthContext is the identity attached to a request: the user, the
// household the session is acting in, and the user's role there.
type AuthContext struct {
	UserID      int64
	HouseholdID int64
	Role        string
	SessionID   int64
}

type contextKey struct{}

// NewContext returns a context carrying ac.
func NewContext(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext returns the identity set by NewContext, if any.
func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

// UserID returns the authenticated user id, or 0 on an anonymous context.
func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

// HouseholdID returns the active household id, or 0 on an anonymous context.
func HouseholdID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.HouseholdID
}

// IsAdmin reports whether the context's user administers the active
// household. Anonymous contexts are never admins.
func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == RoleAdmin
}
