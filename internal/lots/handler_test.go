package lots

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newStockRouter(t *testing.T, seed ...Lot) (chi.Router, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo(seed...)
	service := NewService(repo, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, service)

	r := chi.NewRouter()
	r.Route("/api/stock", func(r chi.Router) {
		handler.MountRoutes(r)
	})
	return r, repo
}

func TestListLotsEndpoint(t *testing.T) {
	router, _ := newStockRouter(t, seedCollection()...)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/stock/lots?bucket=low", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Lots []struct {
			ID      int64   `json:"id"`
			Balance float64 `json:"balance"`
		} `json:"lots"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Lots, 2)
}

func TestListLotsRejectsUnknownBucket(t *testing.T) {
	router, _ := newStockRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/stock/lots?bucket=bogus", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSummaryEndpointFormatsValue(t *testing.T) {
	router, _ := newStockRouter(t, seedCollection()...)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/stock/summary", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		TotalValue        float64 `json:"total_value"`
		TotalValueDisplay string  `json:"total_value_display"`
		ActiveLots        int     `json:"active_lots"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 78.0, resp.TotalValue)
	require.Equal(t, "78.00", resp.TotalValueDisplay)
	require.Equal(t, 3, resp.ActiveLots)
}

func TestOverviewEndpoint(t *testing.T) {
	router, _ := newStockRouter(t, seedCollection()...)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/stock/overview", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Lots    []json.RawMessage `json:"lots"`
		Summary json.RawMessage   `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Lots, 4)
	require.NotEmpty(t, resp.Summary)
}

func TestSetBalanceEndpointConfirmation(t *testing.T) {
	router, repo := newStockRouter(t, seedCollection()...)

	// Raising above initial quantity without confirm is refused.
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/stock/lots/1/balance", strings.NewReader(`{"balance":99}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/stock/lots/1/balance", strings.NewReader(`{"balance":99,"confirm":true}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 99.0, repo.lot(t, 1).Balance)
}

func TestArchiveEndpointToleratesEmptyBody(t *testing.T) {
	router, _ := newStockRouter(t,
		Lot{ID: 5, SKU: "SKU-E", ProductName: "Ember Bowl", Status: LotStatusActive},
	)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/stock/lots/5/archive", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, string(LotStatusArchived), resp.Status)
}

func TestArchiveUnknownLot(t *testing.T) {
	router, _ := newStockRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/stock/lots/404/archive", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
