// AngelaMos | 2026
// handler.go

package ledger

import (
	"encoding/json"
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

// RegisterRoutes mounts the ledger. Permission checks happen in the
// service, so a single authenticator guards the whole group.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/employees", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.Post("/", h.Add)
		r.Get("/summary", h.Summary)

		r.Route("/{empID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Post("/deductions", h.Deduct)
			r.Post("/payments", h.Pay)
			r.Get("/transactions", h.History)
		})
	})
}

func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}

	emp, err := h.service.AddEmployee(r.Context(), session.FromContext(r.Context()), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.Created(w, ToEmployeeResponse(emp))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := ListEmployeesParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
		Search:   r.URL.Query().Get("search"),
	}
	params.Normalize()

	employees, total, err := h.service.ListEmployees(
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
		ToEmployeeResponseList(employees),
		params.Page,
		params.PageSize,
		total,
	)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.GetEmployee(
		r.Context(),
		session.FromContext(r.Context()),
		chi.URLParam(r, "empID"),
	)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.OK(w, ToRecordResponse(rec))
}

func (h *Handler) Deduct(w http.ResponseWriter, r *http.Request) {
	var req DeductRequest
	if !h.decode(w, r, &req) {
		return
	}

	posting, err := h.service.Deduct(
		r.Context(),
		session.FromContext(r.Context()),
		chi.URLParam(r, "empID"),
		req.Amount,
		req.Reason,
	)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.Created(w, ToPostingResponse(posting))
}

func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	posting, err := h.service.Pay(
		r.Context(),
		session.FromContext(r.Context()),
		chi.URLParam(r, "empID"),
	)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.Created(w, ToPostingResponse(posting))
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	txs, err := h.service.History(
		r.Context(),
		session.FromContext(r.Context()),
		chi.URLParam(r, "empID"),
		Kind(r.URL.Query().Get("kind")),
	)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.OK(w, ToTransactionResponseList(txs))
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.OK(w, summary)
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
