// AngelaMos | 2026
// middleware_test.go

package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/payroll-ledger/internal/config"
	"github.com/carterperez-dev/payroll-ledger/internal/core"
	"github.com/carterperez-dev/payroll-ledger/internal/policy"
	"github.com/carterperez-dev/payroll-ledger/internal/session"
)

type stubResolver struct {
	sessions map[string]*session.Session
	err      error
}

func (s stubResolver) Resolve(_ context.Context, token string) (*session.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	sess, ok := s.sessions[token]
	if !ok {
		return nil, core.ErrTokenInvalid
	}
	return sess, nil
}

func echoSession() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess == nil {
			_, _ = w.Write([]byte("anonymous"))
			return
		}
		_, _ = w.Write([]byte(sess.Username))
	})
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body core.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.NotNil(t, body.Error)
	return body.Error.Code
}

func TestAuthenticator(t *testing.T) {
	resolver := stubResolver{sessions: map[string]*session.Session{
		"good": {ID: "s1", Username: "alice", Role: policy.RoleAdmin},
	}}
	h := Authenticator(resolver)(echoSession())

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, ""},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, ""},
		{"valid", "Bearer good", http.StatusOK, "alice"},
		{"case insensitive scheme", "bearer good", http.StatusOK, "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestAuthenticator_ErrorCodes(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{core.ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{core.ErrTokenRevoked, http.StatusUnauthorized, "TOKEN_REVOKED"},
		{core.StoreError("resolve session", assert.AnError), http.StatusServiceUnavailable, "STORE_FAILURE"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			h := Authenticator(stubResolver{err: tt.err})(echoSession())
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer x")
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, rec))
		})
	}
}

func TestRequirePermission(t *testing.T) {
	h := RequirePermission(policy.ManageFinance, policy.ViewReports)(echoSession())

	tests := []struct {
		name       string
		sess       *session.Session
		wantStatus int
	}{
		{"no session", nil, http.StatusUnauthorized},
		{"employee", &session.Session{Username: "e", Role: policy.RoleEmployee}, http.StatusForbidden},
		{"department manager", &session.Session{Username: "d", Role: policy.RoleDepartmentManager}, http.StatusOK},
		{"finance", &session.Session{Username: "f", Role: policy.RoleFinanceManager}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.sess != nil {
				req = req.WithContext(session.WithSession(req.Context(), tt.sess))
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
}

func TestLogger_RecordsSessionUser(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	resolver := stubResolver{sessions: map[string]*session.Session{
		"good": {Username: "alice", Role: policy.RoleAdmin},
	}}
	h := Logger(logger)(Authenticator(resolver)(echoSession()))

	req := httptest.NewRequest(http.MethodGet, "/v1/employees", nil)
	req.Header.Set("Authorization", "Bearer good")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "http request", line["msg"])
	assert.Equal(t, "alice", line["username"])
	assert.EqualValues(t, http.StatusOK, line["status"])
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(true)(echoSession())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestCORS(t *testing.T) {
	h := CORS(config.CORSConfig{
		AllowedOrigins: []string{"https://app.example.com"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	})(echoSession())

	req := httptest.NewRequest(http.MethodOptions, "/v1/employees", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))

	req = httptest.NewRequest(http.MethodOptions, "/v1/employees", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestKeyFuncs(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/employees/E12/deductions", nil)
	req.RemoteAddr = "10.0.0.7:5555"

	assert.Equal(t, "ratelimit:ip:10.0.0.7", KeyByIP(req))
	assert.Equal(t, "ratelimit:ip:10.0.0.7", KeyByUser(req))
	assert.Equal(t,
		"ratelimit:ip:10.0.0.7:endpoint:/v1/employees/{id}/deductions",
		KeyByIPAndEndpoint(req),
	)

	req = req.WithContext(session.WithSession(req.Context(), &session.Session{Username: "alice"}))
	assert.Equal(t, "ratelimit:user:alice", KeyByUser(req))
}
