package referral

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nullprotocol/creditledger/internal/pkg/errorhandler"
	"github.com/nullprotocol/creditledger/internal/pkg/response"
)

// Handler exposes referral reporting.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// AdminRoutes mounts under /api/admin/referrals
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/top", h.Top)
	r.Get("/{id}", h.Count)
	return r
}

// Top handles GET /referrals/top
func (h *Handler) Top(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	top, err := h.engine.TopReferrers(r.Context(), limit)
	if err != nil {
		errorhandler.Handle(r.Context(), w, "top referrers", err)
		return
	}
	response.OK(w, top)
}

// Count handles GET /referrals/{id}
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "Invalid account ID")
		return
	}
	n, err := h.engine.CountReferrals(r.Context(), id)
	if err != nil {
		errorhandler.Handle(r.Context(), w, "count referrals", err)
		return
	}
	response.OK(w, map[string]interface{}{
		"account_id": id,
		"referrals":  n,
		"bonus":      h.engine.Bonus(),
	})
}
