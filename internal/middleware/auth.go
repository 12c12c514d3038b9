package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/user"
	"github.com/Strob0t/TenantCMS/internal/logger"
)

type authUserCtxKey struct{}

// Authenticator turns a bearer token into the user it was issued for.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*user.User, error)
}

// Auth returns middleware that authenticates an optional bearer token.
// Requests without an Authorization header continue as anonymous; a header
// that is malformed or carries an invalid token is rejected with 401 and is
// never downgraded to anonymous access.
func Auth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			token = strings.TrimSpace(token)
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			u, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthenticated) {
					writeError(w, http.StatusUnauthorized, "invalid token")
					return
				}
				slog.ErrorContext(r.Context(), "authenticate request", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			ctx := WithUser(r.Context(), u)
			ctx = logger.WithActor(ctx, u.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, authUserCtxKey{}, u)
}

// UserFromContext returns the authenticated user from the request context,
// or nil for anonymous requests.
func UserFromContext(ctx context.Context) *user.User {
	u, _ := ctx.Value(authUserCtxKey{}).(*user.User)
	return u
}
