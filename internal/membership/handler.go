package membership

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/memberline/memberline/internal/periods"
	"github.com/memberline/memberline/internal/platform/httpx"
	"github.com/memberline/memberline/internal/settings"
	"github.com/memberline/memberline/internal/shared"
)

const dateLayout = "2006-01-02"

// Handler wires membership endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers membership routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Put("/{id}", h.edit)
}

type createRequest struct {
	ContactID      int64  `json:"contact_id" validate:"required"`
	TypeID         int64  `json:"type_id" validate:"required"`
	JoinDate       string `json:"join_date" validate:"required"`
	Status         string `json:"status"`
	ContributionID *int64 `json:"contribution_id"`
}

type editRequest struct {
	JoinDate       *string `json:"join_date"`
	EndDate        *string `json:"end_date"`
	AltEndDate     *string `json:"alt_end_date"`
	Status         *string `json:"status"`
	ContributionID *int64  `json:"contribution_id"`
	RenewalDate    *string `json:"renewal_date"`
	IsRenewal      bool    `json:"is_renewal"`
	PendingPayment bool    `json:"pending_payment"`
}

type membershipResponse struct {
	ID        int64  `json:"id"`
	ContactID int64  `json:"contact_id"`
	TypeID    int64  `json:"type_id"`
	JoinDate  string `json:"join_date"`
	EndDate   string `json:"end_date,omitempty"`
	Status    string `json:"status"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	join, err := time.Parse(dateLayout, req.JoinDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "join_date must be YYYY-MM-DD")
		return
	}
	status := shared.MembershipStatus(req.Status)
	if req.Status != "" && !status.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown status "+strconv.Quote(req.Status))
		return
	}

	m, err := h.service.Create(r.Context(), CreateParams{
		ContactID:      req.ContactID,
		TypeID:         req.TypeID,
		JoinDate:       join,
		Status:         status,
		ContributionID: req.ContributionID,
	})
	if err != nil {
		h.respondError(w, err, "create membership")
		return
	}

	resp := membershipResponse{
		ID:        m.ID,
		ContactID: m.ContactID,
		TypeID:    m.TypeID,
		JoinDate:  m.JoinDate.Format(dateLayout),
		Status:    string(m.Status),
	}
	if !m.EndDate.IsZero() {
		resp.EndDate = m.EndDate.Format(dateLayout)
	}
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid membership id")
		return
	}

	var req editRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}

	params := EditParams{
		ContributionID: req.ContributionID,
		IsRenewal:      req.IsRenewal,
		PendingPayment: req.PendingPayment,
	}
	fields := []struct {
		name  string
		raw   *string
		value **time.Time
	}{
		{"join_date", req.JoinDate, &params.JoinDate},
		{"end_date", req.EndDate, &params.EndDate},
		{"alt_end_date", req.AltEndDate, &params.AltEndDate},
		{"renewal_date", req.RenewalDate, &params.RenewalDate},
	}
	for _, f := range fields {
		if f.raw == nil {
			continue
		}
		t, err := time.Parse(dateLayout, *f.raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", f.name+" must be YYYY-MM-DD")
			return
		}
		*f.value = &t
	}
	if req.Status != nil {
		status := shared.MembershipStatus(*req.Status)
		if !status.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown status "+strconv.Quote(*req.Status))
			return
		}
		params.Status = &status
	}

	if err := h.service.Edit(r.Context(), id, params); err != nil {
		h.respondError(w, err, "edit membership")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error, action string) {
	var cfgErr *settings.ConfigurationError
	switch {
	case periods.IsValidation(err):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &cfgErr):
		h.logger.Error(action, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Configuration Error", err.Error())
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
