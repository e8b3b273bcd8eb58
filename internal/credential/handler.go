// AngelaMos | 2026
// handler.go

package credential

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/payroll-ledger/internal/core"
	"github.com/carterperez-dev/payroll-ledger/internal/session"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, resetLimiter func(http.Handler) http.Handler,
) {
	r.With(authenticator).Post("/auth/password", h.ChangePassword)
	r.With(resetLimiter).Post("/auth/reset", h.RequestReset)
	r.With(resetLimiter).Post("/auth/reset/confirm", h.ConfirmReset)
}

// RegisterAdminRoutes mounts user administration. guard should reject
// sessions without the manage_users permission.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, guard func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(guard)

		r.Get("/admin/users", h.ListUsers)
		r.Post("/admin/users", h.Register)
		r.Put("/admin/users/{username}/activation", h.SetActivation)
	})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.service.ChangePassword(
		r.Context(),
		session.FromContext(r.Context()),
		req.CurrentPassword,
		req.NewPassword,
	)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.NoContent(w)
}

// RequestReset answers 202 whether or not the address is known.
func (h *Handler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.service.RequestReset(r.Context(), req.Email)
	if err != nil && !errors.Is(err, core.ErrUserNotFound) {
		core.Error(w, r, err)
		return
	}
	if err != nil {
		slog.DebugContext(r.Context(), "reset requested for unknown email")
	}

	core.Accepted(w, map[string]string{
		"message": "if the address is registered, a reset token has been sent",
	})
}

func (h *Handler) ConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req ConfirmResetRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ConsumeReset(r.Context(), req.Token, req.NewPassword); err != nil {
		core.Error(w, r, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), session.FromContext(r.Context()), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.Created(w, ToUserResponse(user))
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	params := ListUsersParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
		Search:   r.URL.Query().Get("search"),
		Role:     r.URL.Query().Get("role"),
	}
	params.Normalize()

	users, total, err := h.service.ListUsers(
		r.Context(),
		session.FromContext(r.Context()),
		params,
	)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.Paginated(
		w,
		ToUserResponseList(users),
		params.Page,
		params.PageSize,
		total,
	)
}

func (h *Handler) SetActivation(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req ActivationRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.SetActive(
		r.Context(),
		session.FromContext(r.Context()),
		username,
		*req.Active,
	)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
