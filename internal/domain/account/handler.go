package account

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nullprotocol/creditledger/internal/pkg/errorhandler"
	"github.com/nullprotocol/creditledger/internal/pkg/response"
	"github.com/nullprotocol/creditledger/internal/pkg/validator"
)

// Handler exposes the account ledger over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes are available to the chat front end.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/credits", h.Adjust)
		r.Post("/touch", h.Touch)
		r.Put("/display-name", h.Rename)
		r.Get("/stats", h.Stats)
	})
	return r
}

// AdminGuards gate admin routes by capability. A nil guard lets requests
// through.
type AdminGuards struct {
	View    func(http.Handler) http.Handler
	Ban     func(http.Handler) http.Handler
	Credits func(http.Handler) http.Handler
	Delete  func(http.Handler) http.Handler
}

// AdminRoutes manage account lifecycle and reporting.
func (h *Handler) AdminRoutes(g AdminGuards) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		use(r, g.View)
		r.Get("/summary", h.LedgerStats)
		r.Get("/leaderboard", h.Leaderboard)
		r.Get("/premium", h.Premium)
		r.Get("/low-credits", h.LowCredits)
		r.Get("/inactive", h.Inactive)
		r.Get("/search", h.Search)
		r.Get("/joined", h.Joined)
		r.Get("/recent", h.Recent)
		r.Get("/daily", h.Daily)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/stats", h.Stats)
	})
	r.Group(func(r chi.Router) {
		use(r, g.Ban)
		r.Post("/{id}/ban", h.Ban)
		r.Post("/{id}/unban", h.Unban)
	})
	r.Group(func(r chi.Router) {
		use(r, g.Credits)
		r.Post("/{id}/credits", h.Adjust)
		r.Post("/{id}/reset", h.Reset)
	})
	r.Group(func(r chi.Router) {
		use(r, g.Delete)
		r.Delete("/{id}", h.Delete)
	})
	return r
}

func use(r chi.Router, mw func(http.Handler) http.Handler) {
	if mw != nil {
		r.Use(mw)
	}
}

// Create handles POST /accounts
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	created, err := h.service.CreateIfAbsent(r.Context(), req.ID, req.DisplayName, req.ReferrerID)
	if err != nil {
		h.fail(w, r, "create account", err)
		return
	}

	a, err := h.service.Get(r.Context(), req.ID)
	if err != nil {
		errorhandler.Handle(r.Context(), w, "get account", err)
		return
	}

	if created {
		response.Created(w, CreateResponse{Created: true, Account: a})
		return
	}
	response.OK(w, CreateResponse{Created: false, Account: a})
}

// Get handles GET /accounts/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		errorhandler.Handle(r.Context(), w, "get account", err)
		return
	}
	if a == nil {
		response.NotFound(w, "Account not found")
		return
	}
	response.OK(w, a)
}

// Adjust handles POST /accounts/{id}/credits
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req AdjustRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := h.service.AdjustCredits(r.Context(), id, req.Delta); err != nil {
		h.fail(w, r, "adjust credits", err)
		return
	}
	h.respondAccount(w, r, id)
}

// Touch handles POST /accounts/{id}/touch
func (h *Handler) Touch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Touch(r.Context(), id); err != nil {
		h.fail(w, r, "touch account", err)
		return
	}
	response.NoContent(w)
}

// Rename handles PUT /accounts/{id}/display-name
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req RenameRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := h.service.UpdateDisplayName(r.Context(), id, req.DisplayName); err != nil {
		h.fail(w, r, "rename account", err)
		return
	}
	h.respondAccount(w, r, id)
}

// Stats handles GET /accounts/{id}/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	stats, err := h.service.Stats(r.Context(), id)
	if err != nil {
		h.fail(w, r, "account stats", err)
		return
	}
	response.OK(w, stats)
}

func (h *Handler) Ban(w http.ResponseWriter, r *http.Request)   { h.setBanned(w, r, true) }
func (h *Handler) Unban(w http.ResponseWriter, r *http.Request) { h.setBanned(w, r, false) }

func (h *Handler) setBanned(w http.ResponseWriter, r *http.Request, banned bool) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.SetBanned(r.Context(), id, banned); err != nil {
		h.fail(w, r, "set banned", err)
		return
	}
	h.respondAccount(w, r, id)
}

// Reset handles POST /admin/accounts/{id}/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.ResetCredits(r.Context(), id); err != nil {
		h.fail(w, r, "reset credits", err)
		return
	}
	h.respondAccount(w, r, id)
}

// Delete handles DELETE /admin/accounts/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, "delete account", err)
		return
	}
	response.NoContent(w)
}

// LedgerStats handles GET /admin/accounts/summary
func (h *Handler) LedgerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.LedgerStats(r.Context())
	if err != nil {
		errorhandler.Handle(r.Context(), w, "ledger stats", err)
		return
	}
	response.OK(w, stats)
}

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, "leaderboard", func() ([]Account, error) {
		return h.service.Leaderboard(r.Context(), queryInt(r, "limit"))
	})
}

func (h *Handler) Premium(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, "list premium", func() ([]Account, error) {
		return h.service.ListPremium(r.Context(), queryInt(r, "limit"))
	})
}

func (h *Handler) LowCredits(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, "list low credits", func() ([]Account, error) {
		return h.service.ListLowCredits(r.Context(), queryInt(r, "limit"))
	})
}

func (h *Handler) Inactive(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, "list inactive", func() ([]Account, error) {
		return h.service.ListInactive(r.Context(), queryInt(r, "days"), queryInt(r, "limit"))
	})
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, "search accounts", func() ([]Account, error) {
		return h.service.Search(r.Context(), r.URL.Query().Get("q"), queryInt(r, "limit"))
	})
}

// Joined handles GET /admin/accounts/joined?from=&to=
func (h *Handler) Joined(w http.ResponseWriter, r *http.Request) {
	from, ok := queryTime(r, "from", false)
	if !ok {
		response.BadRequest(w, "Invalid from date")
		return
	}
	to, ok := queryTime(r, "to", true)
	if !ok {
		response.BadRequest(w, "Invalid to date")
		return
	}

	accounts, err := h.service.ListJoinedBetween(r.Context(), from, to, queryInt(r, "limit"))
	if errors.Is(err, ErrInvalidRange) {
		response.BadRequest(w, "Range ends before it starts")
		return
	}
	if err != nil {
		errorhandler.Handle(r.Context(), w, "list joined between", err)
		return
	}
	response.OK(w, accounts)
}

func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, "list recent", func() ([]Account, error) {
		return h.service.ListRecent(r.Context(), queryInt(r, "limit"))
	})
}

// Daily handles GET /admin/accounts/daily?days=
func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.DailyStats(r.Context(), queryInt(r, "days"))
	if err != nil {
		errorhandler.Handle(r.Context(), w, "daily stats", err)
		return
	}
	response.OK(w, stats)
}

func (h *Handler) respondList(w http.ResponseWriter, r *http.Request, op string, fn func() ([]Account, error)) {
	accounts, err := fn()
	if err != nil {
		errorhandler.Handle(r.Context(), w, op, err)
		return
	}
	response.OK(w, accounts)
}

func (h *Handler) respondAccount(w http.ResponseWriter, r *http.Request, id int64) {
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		errorhandler.Handle(r.Context(), w, "get account", err)
		return
	}
	if a == nil {
		response.NotFound(w, "Account not found")
		return
	}
	response.OK(w, a)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		response.NotFound(w, "Account not found")
	case errors.Is(err, ErrInvalidAccountID):
		response.BadRequest(w, "Invalid account ID")
	case errors.Is(err, ErrInvalidDisplayName):
		response.BadRequest(w, "Display name is too long")
	default:
		errorhandler.Handle(r.Context(), w, op, err)
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "Invalid account ID")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(key))
	return v
}

// queryTime accepts RFC 3339 or a bare date. A bare date used as the end of a
// range covers that whole day.
func queryTime(r *http.Request, key string, endOfDay bool) (time.Time, bool) {
	v := r.URL.Query().Get(key)
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, true
}
