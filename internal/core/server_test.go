package core

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrelay/internal/types"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return srv
}

func TestNewServer_RequiresLogger(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.MountRoutes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestRequestIDMiddleware_GeneratesAndPropagates(t *testing.T) {
	srv := newTestServer(t)
	var seenID string
	srv.RouteRegistrars = append(srv.RouteRegistrars, func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			seenID = types.GetRequestID(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})
	})
	srv.MountRoutes()

	// Generated when absent.
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, seenID)
	assert.Equal(t, seenID, rec.Header().Get("X-Request-Id"))

	// Reused when supplied.
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "incoming-id")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "incoming-id", seenID)
	assert.Equal(t, "incoming-id", rec.Header().Get("X-Request-Id"))
}

func TestRecoverer_ConvertsPanicTo500(t *testing.T) {
	srv := newTestServer(t)
	srv.RouteRegistrars = append(srv.RouteRegistrars, func(r chi.Router) {
		r.Get("/boom", func(http.ResponseWriter, *http.Request) {
			panic("handler exploded")
		})
	})
	srv.MountRoutes()

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"an unexpected error occurred"}`, rec.Body.String())
}

func TestError_AppErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "auth error",
			err:        types.NewAppError(types.ErrCodeAuthSignatureInvalid, "Invalid signature", nil),
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"status":"error","message":"Invalid signature"}`,
		},
		{
			name:       "validation error",
			err:        types.NewAppError(types.ErrCodeValidationInvalidJSON, "malformed JSON payload", nil),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"status":"error","message":"malformed JSON payload"}`,
		},
		{
			name:       "plain error hides details",
			err:        assert.AnError,
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"status":"error","message":"an unexpected error occurred"}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.JSONEq(t, tc.wantBody, rec.Body.String())
		})
	}
}
