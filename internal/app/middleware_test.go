package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/merx-ops/merx/internal/platform/session"
)

func TestRequireUserBlocksAnonymous(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/stock/lots", nil)
	rr := httptest.NewRecorder()
	RequireUser(next).ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireUserBlocksLoggedOutSession(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/stock/lots", nil)
	req = req.WithContext(session.ContextWith(req.Context(), &session.Session{}))
	rr := httptest.NewRecorder()
	RequireUser(next).ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireUserPassesAuthenticated(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	sess := &session.Session{}
	sess.SetUser("1")
	req := httptest.NewRequest(http.MethodGet, "/api/stock/lots", nil)
	req = req.WithContext(session.ContextWith(req.Context(), sess))
	rr := httptest.NewRecorder()
	RequireUser(next).ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, called)
}
