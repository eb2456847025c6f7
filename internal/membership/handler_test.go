package membership

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*serviceEnv, http.Handler) {
	t.Helper()
	env := newServiceEnv(t)
	handler := NewHandler(nil, env.service)
	r := chi.NewRouter()
	r.Route("/memberships", handler.MountRoutes)
	return env, r
}

func TestHandlerCreateMembership(t *testing.T) {
	env, router := newTestRouter(t)

	body := `{"contact_id": 100, "type_id": 1, "join_date": "2024-01-15"}`
	req := httptest.NewRequest(http.MethodPost, "/memberships/", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Contains(t, rr.Body.String(), `"end_date":"2025-01-14"`)
	require.Contains(t, rr.Body.String(), `"status":"New"`)
	require.Len(t, env.store.All(), 1)
}

func TestHandlerCreateRejectsBadDate(t *testing.T) {
	_, router := newTestRouter(t)

	body := `{"contact_id": 100, "type_id": 1, "join_date": "15/01/2024"}`
	req := httptest.NewRequest(http.MethodPost, "/memberships/", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerCreateRejectsUnknownStatus(t *testing.T) {
	_, router := newTestRouter(t)

	body := `{"contact_id": 100, "type_id": 1, "join_date": "2024-01-15", "status": "Vanished"}`
	req := httptest.NewRequest(http.MethodPost, "/memberships/", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerEditValidationFailure(t *testing.T) {
	env, router := newTestRouter(t)
	seedMembership(t, env)

	body := `{"end_date": "2023-01-01"}`
	req := httptest.NewRequest(http.MethodPut, "/memberships/1", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "end date precedes existing coverage")
}

func TestHandlerEditExtendsCoverage(t *testing.T) {
	env, router := newTestRouter(t)
	seedMembership(t, env)

	body := `{"end_date": "2025-12-31"}`
	req := httptest.NewRequest(http.MethodPut, "/memberships/1", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Len(t, env.store.All(), 2)
}

func TestHandlerEditMissingMembership(t *testing.T) {
	_, router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/memberships/42", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}
