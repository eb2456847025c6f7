package payments

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*adapterEnv, http.Handler) {
	t.Helper()
	env := newAdapterEnv(t)
	handler := NewHandler(nil, env.adapter)
	r := chi.NewRouter()
	r.Route("/payments", handler.MountRoutes)
	return env, r
}

func TestHandlerProcessesEventBatch(t *testing.T) {
	env, router := newTestRouter(t)
	env.registry.payments[5] = Payment{ID: 5, Status: ContributionPending}

	body := `[
		{"event_id": "ev-1", "payment_id": 5, "membership_id": 1},
		{"event_id": "ev-1", "payment_id": 5, "membership_id": 1}
	]`
	req := httptest.NewRequest(http.MethodPost, "/payments/events", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"processed":2`)
	// The repeated event id within the batch is handled once.
	require.Len(t, env.store.All(), 1)
}

func TestHandlerRejectsIncompleteEvent(t *testing.T) {
	_, router := newTestRouter(t)

	body := `[{"event_id": "ev-1", "payment_id": 5}]`
	req := httptest.NewRequest(http.MethodPost, "/payments/events", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerMissingEntityMapsToNotFound(t *testing.T) {
	_, router := newTestRouter(t)

	body := `[{"event_id": "ev-1", "payment_id": 5, "membership_id": 42}]`
	req := httptest.NewRequest(http.MethodPost, "/payments/events", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}
