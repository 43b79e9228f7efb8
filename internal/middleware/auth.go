// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/angelamos/tutoring-portal/internal/core"
)

type contextKey string

const (
	identityKey    contextKey = "identity"
	requestUserKey contextKey = "request_user"
)

// Identity is the caller established from a verified bearer token. It lives
// only for the duration of one request.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// Verification is the outcome of checking a bearer token. Callers branch on
// Valid; Expired is informational.
type Verification struct {
	Valid     bool
	Expired   bool
	Identity  Identity
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) Verification
}

// AuthenticatedHandlerFunc receives the caller identity explicitly instead
// of digging it out of the request.
type AuthenticatedHandlerFunc func(
	w http.ResponseWriter,
	r *http.Request,
	id Identity,
)

func Authenticator(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				core.JSONError(w, core.TokenRequiredError())
				return
			}

			result := verifier.VerifyToken(r.Context(), token)
			if !result.Valid {
				slog.DebugContext(r.Context(), "rejected bearer token",
					"expired", result.Expired,
					"path", r.URL.Path,
				)
				core.JSONError(w, core.TokenInvalidError())
				return
			}

			ctx := WithIdentity(r.Context(), result.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func OptionalAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := ExtractToken(r); token != "" {
				result := verifier.VerifyToken(r.Context(), token)
				if result.Valid {
					r = r.WithContext(WithIdentity(r.Context(), result.Identity))
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole must run after Authenticator. The rejection never names the
// roles that would have been accepted.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				core.JSONError(w, core.UnauthorizedError("Authentication required"))
				return
			}

			if _, allowed := roleSet[id.Role]; !allowed {
				core.JSONError(w, core.ForbiddenError("Insufficient permissions"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole("admin")(next)
}

// ServeHTTP lets an AuthenticatedHandlerFunc be mounted as a plain handler.
// It answers 401 when no identity was attached upstream.
func (fn AuthenticatedHandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		core.JSONError(w, core.UnauthorizedError("Authentication required"))
		return
	}
	fn(w, r, id)
}

func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// WithIdentity attaches id to ctx and reports it to the request logger
// installed further up the chain.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if holder, ok := ctx.Value(requestUserKey).(*requestUser); ok {
		holder.set(id.UserID)
	}
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}
