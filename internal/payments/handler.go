package payments

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/memberline/memberline/internal/platform/httpx"
	"github.com/memberline/memberline/internal/shared"
)

// Handler wires payment event endpoints.
type Handler struct {
	logger  *slog.Logger
	adapter *Adapter
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, adapter *Adapter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, adapter: adapter}
}

// MountRoutes registers payment event routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/events", h.handleEvents)
}

type eventRequest struct {
	Kind            string `json:"kind"`
	EventID         string `json:"event_id"`
	PaymentID       int64  `json:"payment_id"`
	MembershipID    int64  `json:"membership_id"`
	RecurringPlanID *int64 `json:"recurring_plan_id"`
	KnownPeriodID   *int64 `json:"known_period_id"`
}

type eventsResponse struct {
	Processed int `json:"processed"`
}

// handleEvents processes one delivery batch of payment events. The batch
// shares a single dedupe scope: repeats of an event id within the batch are
// handled once.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	var reqs []eventRequest
	if err := httpx.DecodeJSON(r, &reqs); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}

	scope := NewScope()
	for _, req := range reqs {
		if req.PaymentID == 0 || req.MembershipID == 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "payment_id and membership_id are required")
			return
		}
		ev := Event{
			Kind:            EventKind(req.Kind),
			EventID:         req.EventID,
			PaymentID:       req.PaymentID,
			MembershipID:    req.MembershipID,
			RecurringPlanID: req.RecurringPlanID,
			KnownPeriodID:   req.KnownPeriodID,
		}
		if ev.Kind == "" {
			ev.Kind = EventCreated
		}
		if ev.EventID == "" {
			ev.EventID = uuid.NewString()
		}
		if err := h.adapter.HandleCreated(r.Context(), scope, ev); err != nil {
			h.respondError(w, err, ev)
			return
		}
	}

	httpx.JSON(w, http.StatusOK, eventsResponse{Processed: len(reqs)})
}

func (h *Handler) respondError(w http.ResponseWriter, err error, ev Event) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	h.logger.Error("process payment event",
		slog.String("event_id", ev.EventID),
		slog.Int64("payment_id", ev.PaymentID),
		slog.Any("error", err))
	httpx.RespondError(w, err)
}
