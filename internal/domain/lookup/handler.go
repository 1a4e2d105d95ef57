package lookup

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nullprotocol/creditledger/internal/pkg/errorhandler"
	"github.com/nullprotocol/creditledger/internal/pkg/response"
	"github.com/nullprotocol/creditledger/internal/pkg/validator"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Append)
	r.Get("/{accountID}", h.Recent)
	return r
}

func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/stats", h.Stats)
	r.Get("/total", h.Total)
	r.Get("/{accountID}", h.Recent)
	r.Get("/{accountID}/activity", h.Activity)
	return r
}

// Append handles POST /lookups
func (h *Handler) Append(w http.ResponseWriter, r *http.Request) {
	var req AppendRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	err := h.service.Append(r.Context(), req.AccountID, req.APIType, req.InputData, req.Result)
	if errors.Is(err, ErrInvalidAPIType) {
		response.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		errorhandler.Handle(r.Context(), w, "append lookup", err)
		return
	}
	response.NoContent(w)
}

// Recent handles GET /lookups/{accountID}
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAccountID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	logs, err := h.service.Recent(r.Context(), id, limit)
	if err != nil {
		errorhandler.Handle(r.Context(), w, "recent lookups", err)
		return
	}
	response.OK(w, logs)
}

// Activity handles GET /admin/lookups/{accountID}/activity?days=
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAccountID(w, r)
	if !ok {
		return
	}
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	n, err := h.service.CountSince(r.Context(), id, days)
	if err != nil {
		errorhandler.Handle(r.Context(), w, "lookup activity", err)
		return
	}
	response.OK(w, ActivityResponse{AccountID: id, Days: activityDays(days), Lookups: n})
}

// Total handles GET /admin/lookups/total
func (h *Handler) Total(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Total(r.Context())
	if err != nil {
		errorhandler.Handle(r.Context(), w, "total lookups", err)
		return
	}
	response.OK(w, TotalResponse{Lookups: n})
}

// Stats handles GET /admin/lookups/stats?account_id=
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	var accountID *int64
	if v := r.URL.Query().Get("account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			response.BadRequest(w, "Invalid account ID")
			return
		}
		accountID = &id
	}

	counts, err := h.service.CountByType(r.Context(), accountID)
	if err != nil {
		errorhandler.Handle(r.Context(), w, "lookup stats", err)
		return
	}
	response.OK(w, counts)
}

func parseAccountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "Invalid account ID")
		return 0, false
	}
	return id, true
}

func activityDays(days int) int {
	if days <= 0 {
		return defaultActivityDays
	}
	return days
}
