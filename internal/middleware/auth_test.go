// AngelaMos | 2026
// auth_test.go

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/tutoring-portal/internal/core"
)

type fakeVerifier struct {
	tokens map[string]Verification
	calls  atomic.Int64
}

func (f *fakeVerifier) VerifyToken(_ context.Context, token string) Verification {
	f.calls.Add(1)
	if v, ok := f.tokens[token]; ok {
		return v
	}
	return Verification{}
}

var (
	student = Identity{UserID: "u-student", Email: "alice@example.com", Role: "student"}
	admin   = Identity{UserID: "u-admin", Email: "root@example.com", Role: "admin"}
)

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{tokens: map[string]Verification{
		"student-token": {Valid: true, Identity: student},
		"admin-token":   {Valid: true, Identity: admin},
		"expired-token": {Valid: false, Expired: true},
	}}
}

func identityEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			core.OK(w, map[string]any{"anonymous": true})
			return
		}
		core.OK(w, id)
	})
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp core.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	return resp.Error.Code
}

func TestAuthenticator(t *testing.T) {
	verifier := newFakeVerifier()
	handler := Authenticator(verifier)(identityEcho())

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"missing header", "", http.StatusUnauthorized, core.CodeTokenRequired},
		{"wrong scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, core.CodeTokenRequired},
		{"bearer without token", "Bearer ", http.StatusUnauthorized, core.CodeTokenRequired},
		{"no separator", "Bearerstudent-token", http.StatusUnauthorized, core.CodeTokenRequired},
		{"unknown token", "Bearer forged", http.StatusForbidden, core.CodeTokenInvalid},
		{"expired token", "Bearer expired-token", http.StatusForbidden, core.CodeTokenInvalid},
		{"valid token", "Bearer student-token", http.StatusOK, ""},
		{"lower case scheme", "bearer student-token", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, rec))
				return
			}

			var got Identity
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, student, got)
		})
	}
}

func TestAuthenticatorConcurrentRejections(t *testing.T) {
	verifier := newFakeVerifier()
	handler := Authenticator(verifier)(identityEcho())

	headers := []string{"", "Token abc", "Bearer expired-token", "Bearer forged"}

	const perHeader = 25
	var wg sync.WaitGroup
	var accepted atomic.Int64

	for _, h := range headers {
		for range perHeader {
			wg.Add(1)
			go func(header string) {
				defer wg.Done()
				req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
				if header != "" {
					req.Header.Set("Authorization", header)
				}
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, req)
				if rec.Code == http.StatusOK {
					accepted.Add(1)
				}
			}(h)
		}
	}
	wg.Wait()

	assert.Zero(t, accepted.Load())
	// only the two header shapes carrying a bearer token reach the verifier
	assert.Equal(t, int64(2*perHeader), verifier.calls.Load())
}

func TestRequireRole(t *testing.T) {
	verifier := newFakeVerifier()
	handler := Authenticator(verifier)(RequireRole("admin")(identityEcho()))

	t.Run("student rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
		req.Header.Set("Authorization", "Bearer student-token")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, core.CodeInsufficientPermissions, errorCode(t, rec))
		assert.NotContains(t, rec.Body.String(), "admin")
	})

	t.Run("admin accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
		req.Header.Set("Authorization", "Bearer admin-token")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireRoleWithoutIdentity(t *testing.T) {
	handler := RequireRole("admin", "student")(identityEcho())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, core.CodeAuthenticationRequired, errorCode(t, rec))
}

func TestRequireRoleMultiple(t *testing.T) {
	handler := RequireRole("admin", "student")(identityEcho())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), student))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOptionalAuth(t *testing.T) {
	verifier := newFakeVerifier()
	handler := OptionalAuth(verifier)(identityEcho())

	tests := []struct {
		name      string
		header    string
		anonymous bool
	}{
		{"no header", "", true},
		{"invalid token", "Bearer forged", true},
		{"expired token", "Bearer expired-token", true},
		{"valid token", "Bearer admin-token", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			if tt.anonymous {
				assert.JSONEq(t, `{"anonymous":true}`, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), admin.UserID)
			}
		})
	}
}

func TestAuthenticatedHandlerFunc(t *testing.T) {
	var got Identity
	fn := AuthenticatedHandlerFunc(func(w http.ResponseWriter, _ *http.Request, id Identity) {
		got = id
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("with identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), admin))
		rec := httptest.NewRecorder()

		fn.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, admin, got)
	})

	t.Run("without identity", func(t *testing.T) {
		rec := httptest.NewRecorder()
		fn.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, core.CodeAuthenticationRequired, errorCode(t, rec))
	})
}

func TestIdentityFromContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	got, ok := IdentityFromContext(WithIdentity(context.Background(), admin))
	require.True(t, ok)
	assert.Equal(t, admin, got)

	_, ok = IdentityFromContext(WithIdentity(context.Background(), Identity{Role: "admin"}))
	assert.False(t, ok, "identity without a subject is not an identity")
}
