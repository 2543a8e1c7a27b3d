// Package auth resolves the signed-in user of a request, either from a demo
// session cookie or from an RS256 session token.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// DefaultAvatar is used for users without a picture.
const DefaultAvatar = "/demo/avatars/default.svg"

// User is the signed-in account.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	ImageURL  string `json:"imageUrl"`
	Role      Role   `json:"role"`
}

// Username is the local part of the email address.
func (u *User) Username() string {
	name, _, _ := strings.Cut(u.Email, "@")
	return name
}

// ErrUnauthenticated means the request carries no valid session.
var ErrUnauthenticated = errors.New("authentication required")

// Authenticator identifies the user behind a request.
type Authenticator interface {
	// CurrentUser returns ErrUnauthenticated when there is no valid session.
	CurrentUser(r *http.Request) (*User, error)
}

type contextKey struct{}

// WithUser attaches u to ctx.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// UserFromContext returns the user attached by Middleware, if any.
func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(contextKey{}).(*User)
	return u, ok && u != nil
}

// Middleware resolves the user of every request and attaches it to the
// request context. Requests without a session pass through unchanged.
func Middleware(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := a.CurrentUser(r)
			switch {
			case err == nil:
				log := zerolog.Ctx(r.Context()).With().Str("user_id", u.ID).Logger()
				r = r.WithContext(WithUser(log.WithContext(r.Context()), u))
			case !errors.Is(err, ErrUnauthenticated):
				zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Failed to resolve session")
			}
			next.ServeHTTP(w, r)
		})
	}
}
