package redeem

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nullprotocol/creditledger/internal/pkg/errorhandler"
	"github.com/nullprotocol/creditledger/internal/pkg/logger"
	"github.com/nullprotocol/creditledger/internal/pkg/response"
	"github.com/nullprotocol/creditledger/internal/pkg/validator"
)

// Handler exposes the redeem code registry over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes are available to the chat front end.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Claim)
	r.Get("/history/{accountID}", h.History)
	return r
}

// AdminRoutes manage code definitions. view gates reads and manage gates
// writes; either may be nil.
func (h *Handler) AdminRoutes(view, manage func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		if view != nil {
			r.Use(view)
		}
		r.Get("/", h.List)
		r.Get("/{code}", h.Get)
		r.Get("/{code}/stats", h.Stats)
	})
	r.Group(func(r chi.Router) {
		if manage != nil {
			r.Use(manage)
		}
		r.Post("/", h.Define)
		r.Post("/generate", h.Generate)
		r.Post("/{code}/deactivate", h.Deactivate)
		r.Delete("/{code}", h.Delete)
	})
	return r
}

// Claim handles POST /redeem
// Business outcomes are returned with 200 and a status field.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	result := h.service.Claim(r.Context(), req.AccountID, req.Code)
	switch result.Status {
	case StatusThrottled:
		response.TooManyRequests(w, "Too many failed attempts, try again later")
	case StatusStorageFailure:
		logger.FromContext(r.Context()).Error().Str("detail", result.Detail).Msg("Claim not applied")
		response.ServiceUnavailable(w)
	default:
		response.OK(w, result)
	}
}

// History handles GET /redeem/history/{accountID}
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "Invalid account ID")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := h.service.History(r.Context(), id, limit)
	if err != nil {
		errorhandler.Handle(r.Context(), w, "claim history", err)
		return
	}
	response.OK(w, records)
}

// Define handles POST /admin/codes
func (h *Handler) Define(w http.ResponseWriter, r *http.Request) {
	var req DefineRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	expiry, err := ParseExpiry(req.Expiry)
	if err != nil {
		response.ValidationError(w, map[string]string{"expiry": "Use 30m, 2h, 1h30m, minutes or none"})
		return
	}

	c, err := h.service.Define(r.Context(), DefineInput{
		Code:    req.Code,
		Amount:  req.Amount,
		MaxUses: req.MaxUses,
		Expiry:  expiry,
	})
	if err != nil {
		h.fail(w, r, "define code", err)
		return
	}
	response.Created(w, c)
}

// Generate handles POST /admin/codes/generate
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	expiry, err := ParseExpiry(req.Expiry)
	if err != nil {
		response.ValidationError(w, map[string]string{"expiry": "Use 30m, 2h, 1h30m, minutes or none"})
		return
	}

	c, err := h.service.Generate(r.Context(), req.Prefix, req.Amount, req.MaxUses, expiry)
	if err != nil {
		h.fail(w, r, "generate code", err)
		return
	}
	response.Created(w, c)
}

// List handles GET /admin/codes?status=active|inactive|expired|all
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter(r.URL.Query().Get("status"))
	switch filter {
	case "":
		filter = FilterAll
	case FilterAll, FilterActive, FilterInactive, FilterExpired:
	default:
		response.BadRequest(w, "Invalid status filter")
		return
	}

	codes, err := h.service.List(r.Context(), filter)
	if err != nil {
		errorhandler.Handle(r.Context(), w, "list codes", err)
		return
	}
	response.OK(w, codes)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, "get code", err)
		return
	}
	response.OK(w, c)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.UsageStats(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, "code stats", err)
		return
	}
	response.OK(w, stats)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Deactivate(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.fail(w, r, "deactivate code", err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.fail(w, r, "delete code", err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrCodeNotFound):
		response.NotFound(w, "Code not found")
	case errors.Is(err, ErrMaxUsesBelowCurrent):
		response.Conflict(w, "Max uses is below uses already claimed")
	case errors.Is(err, ErrInvalidCode), errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidMaxUses), errors.Is(err, ErrInvalidExpiry):
		response.BadRequest(w, err.Error())
	default:
		errorhandler.Handle(r.Context(), w, op, err)
	}
}
