package snapshot

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nullprotocol/creditledger/internal/pkg/errorhandler"
	"github.com/nullprotocol/creditledger/internal/pkg/logger"
	"github.com/nullprotocol/creditledger/internal/pkg/response"
	"github.com/nullprotocol/creditledger/internal/pkg/wakeup"
)

type Handler struct {
	exporter  *Exporter
	publisher *wakeup.Publisher
}

// NewHandler creates the handler. publisher may be nil, in which case async
// requests run inline.
func NewHandler(exporter *Exporter, publisher *wakeup.Publisher) *Handler {
	return &Handler{exporter: exporter, publisher: publisher}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Take)
	return r
}

// Take handles POST /admin/snapshots[?async=true]
func (h *Handler) Take(w http.ResponseWriter, r *http.Request) {
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async && h.publisher.Enabled() {
		if err := h.publisher.Publish(r.Context(), wakeup.KindSnapshot); err != nil {
			logger.FromContext(r.Context()).Warn().Err(err).Msg("Snapshot wake-up failed, running inline")
		} else {
			response.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
			return
		}
	}

	info, err := h.exporter.Take(r.Context())
	if err != nil {
		errorhandler.Handle(r.Context(), w, "take snapshot", err)
		return
	}
	response.Created(w, info)
}

// List handles GET /admin/snapshots
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	objects, err := h.exporter.List(r.Context(), limit)
	if err != nil {
		errorhandler.Handle(r.Context(), w, "list snapshots", err)
		return
	}
	response.OK(w, objects)
}
