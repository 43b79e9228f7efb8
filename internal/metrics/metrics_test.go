// AngelaMos | 2026
// metrics_test.go

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAuthEvent(t *testing.T) {
	m := New()

	m.RecordAuthEvent("login", OutcomeSuccess)
	m.RecordAuthEvent("login", OutcomeFailure)
	m.RecordAuthEvent("login", OutcomeFailure)

	assert.InDelta(t, 1, testutil.ToFloat64(m.authEvents.WithLabelValues("login", OutcomeSuccess)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.authEvents.WithLabelValues("login", OutcomeFailure)), 0)
}

func TestRecordAuthEventNilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.RecordAuthEvent("login", OutcomeSuccess) })
}

func TestRecordRateLimited(t *testing.T) {
	m := New()

	m.RecordRateLimited("credentials")
	m.RecordRateLimited("credentials")
	m.RecordRateLimited("global")

	assert.InDelta(t, 2, testutil.ToFloat64(m.rateLimited.WithLabelValues("credentials")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.rateLimited.WithLabelValues("global")), 0)

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.RecordRateLimited("global") })
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/admin/users/{userID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/users/42", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `route="/api/admin/users/{userID}"`)
	assert.NotContains(t, body, `route="/api/admin/users/42"`)
}
