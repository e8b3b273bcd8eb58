// AngelaMos | 2026
// handler_test.go

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func serve(t *testing.T, h *Handler, path string) (*httptest.ResponseRecorder, ReadinessResponse) {
	t.Helper()

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body ReadinessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec, body
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name     string
		deps     []Dependency
		wantCode int
		wantStat string
	}{
		{
			name: "all healthy",
			deps: []Dependency{
				{Name: "database", Checker: CheckerFunc(ok)},
				{Name: "redis", Checker: CheckerFunc(ok)},
			},
			wantCode: http.StatusOK,
			wantStat: "ok",
		},
		{
			name: "one failing",
			deps: []Dependency{
				{Name: "database", Checker: CheckerFunc(ok)},
				{Name: "redis", Checker: CheckerFunc(func(context.Context) error {
					return errors.New("connection refused")
				})},
			},
			wantCode: http.StatusServiceUnavailable,
			wantStat: "degraded",
		},
		{
			name:     "missing checker",
			deps:     []Dependency{{Name: "database"}},
			wantCode: http.StatusServiceUnavailable,
			wantStat: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := serve(t, NewHandler(tt.deps...), "/readyz")

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantStat, body.Status)
			require.Len(t, body.Checks, len(tt.deps))
			for i, dep := range tt.deps {
				assert.Equal(t, dep.Name, body.Checks[i].Name)
			}
		})
	}
}

func TestReadiness_HidesFailureDetail(t *testing.T) {
	h := NewHandler(Dependency{Name: "database", Checker: CheckerFunc(func(context.Context) error {
		return errors.New("password authentication failed for user payroll")
	})})

	_, body := serve(t, h, "/readyz")
	assert.Equal(t, "ping failed", body.Checks[0].Message)
}

func TestShutdownAndNotReady(t *testing.T) {
	h := NewHandler(Dependency{Name: "database", Checker: CheckerFunc(ok)})

	h.SetReady(false)
	rec, body := serve(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", body.Status)

	rec, _ = serve(t, h, "/livez")
	assert.Equal(t, http.StatusOK, rec.Code)

	h.SetShutdown(true)
	rec, body = serve(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "shutting_down", body.Status)
}
