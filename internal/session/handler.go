// AngelaMos | 2026
// handler.go

package session

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/payroll-ledger/internal/core"
)

type Handler struct {
	manager   *Manager
	auth      Authenticator
	validator *validator.Validate
}

func NewHandler(manager *Manager, auth Authenticator) *Handler {
	return &Handler{
		manager:   manager,
		auth:      auth,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, loginLimiter func(http.Handler) http.Handler,
) {
	r.With(loginLimiter).Post("/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Get("/auth/me", h.Me)
		r.Post("/auth/logout", h.Logout)
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	sess, token, err := h.manager.Login(r.Context(), h.auth, req.Username, req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.OK(w, LoginResponse{
		Session: ToSessionResponse(sess),
		Tokens: TokenResponse{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   int(time.Until(sess.ExpiresAt) / time.Second),
			ExpiresAt:   sess.ExpiresAt,
		},
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Logout(r.Context()); err != nil {
		core.Error(w, r, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sess, err := Require(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.OK(w, ToSessionResponse(sess))
}
