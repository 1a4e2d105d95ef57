package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nullprotocol/creditledger/internal/domain/account"
	"github.com/nullprotocol/creditledger/internal/middleware"
	"github.com/nullprotocol/creditledger/internal/pkg/errorhandler"
	"github.com/nullprotocol/creditledger/internal/pkg/response"
	"github.com/nullprotocol/creditledger/internal/pkg/validator"
)

// Handler serves admin membership and bulk operations.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes expects RequireAdmin to have run.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/me", h.Me)

	r.Group(func(r chi.Router) {
		r.Use(RequirePermission(PermManageAdmins))
		r.Get("/admins", h.ListAdmins)
		r.Post("/admins", h.AddAdmin)
		r.Delete("/admins/{id}", h.RemoveAdmin)
	})

	r.With(RequirePermission(PermAdjustCredits)).Post("/bulk/credits", h.BulkCredits)
	r.With(RequirePermission(PermManageCodes)).Delete("/bulk/expired-codes", h.DeleteExpired)
	return r
}

// Me handles GET /admin/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]any{
		"id":    middleware.GetAccountID(r.Context()),
		"level": GetLevel(r.Context()),
	})
}

func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.service.ListAdmins(r.Context())
	if err != nil {
		errorhandler.Handle(r.Context(), w, "list admins", err)
		return
	}
	response.OK(w, admins)
}

// AddAdmin handles POST /admin/admins
func (h *Handler) AddAdmin(w http.ResponseWriter, r *http.Request) {
	var req AddAdminRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	a, err := h.service.AddAdmin(r.Context(), middleware.GetAccountID(r.Context()), req.ID, Level(req.Level))
	if err != nil {
		h.fail(w, r, "add admin", err)
		return
	}
	response.Created(w, a)
}

// RemoveAdmin handles DELETE /admin/admins/{id}
func (h *Handler) RemoveAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "Invalid admin ID")
		return
	}
	if err := h.service.RemoveAdmin(r.Context(), middleware.GetAccountID(r.Context()), id); err != nil {
		h.fail(w, r, "remove admin", err)
		return
	}
	response.NoContent(w)
}

// BulkCredits handles POST /admin/bulk/credits
func (h *Handler) BulkCredits(w http.ResponseWriter, r *http.Request) {
	var req BulkCreditsRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	res, err := h.service.BulkAdjustCredits(r.Context(), req.AccountIDs, req.Delta)
	if err != nil {
		h.fail(w, r, "bulk credits", err)
		return
	}
	response.OK(w, res)
}

// DeleteExpired handles DELETE /admin/bulk/expired-codes
func (h *Handler) DeleteExpired(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.DeleteAllExpired(r.Context())
	if err != nil {
		errorhandler.Handle(r.Context(), w, "delete expired codes", err)
		return
	}
	response.OK(w, res)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrAdminNotFound):
		response.NotFound(w, "Admin not found")
	case errors.Is(err, account.ErrAccountNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrCannotRemoveOwner), errors.Is(err, ErrInsufficientRank):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrInvalidLevel), errors.Is(err, ErrEmptyTargets),
		errors.Is(err, ErrZeroDelta), errors.Is(err, account.ErrInvalidAccountID):
		response.BadRequest(w, err.Error())
	default:
		errorhandler.Handle(r.Context(), w, op, err)
	}
}
