package middleware

import (
	"context"
	"net/http"
	"strings"
)

// Roles an upstream authenticator may assert.
const (
	RoleUser  = "user"
	RoleStaff = "staff"
)

// Identity is the caller as asserted by the upstream authenticator.
// Authentication itself happens outside this service; an empty UserID marks
// an anonymous request.
type Identity struct {
	UserID        string
	Role          string
	InstitutionID string
}

// Anonymous reports whether the request carried no user identity.
func (id Identity) Anonymous() bool {
	return id.UserID == ""
}

type identityKey struct{}

// WithIdentity extracts the identity headers into the request context.
func WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			UserID:        strings.TrimSpace(r.Header.Get("X-User-ID")),
			Role:          strings.TrimSpace(r.Header.Get("X-Role")),
			InstitutionID: strings.TrimSpace(r.Header.Get("X-Institution-ID")),
		}
		if id.Role == "" && id.UserID != "" {
			id.Role = RoleUser
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

// IdentityFrom returns the identity stored by WithIdentity, or the anonymous
// identity when the middleware did not run.
func IdentityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}
