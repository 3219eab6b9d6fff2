package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/merx-ops/merx/internal/lots"
	"github.com/merx-ops/merx/internal/observability"
)

type stubStock struct {
	lots    []lots.Lot
	summary lots.StockSummary
	filters []lots.ListFilter
}

func (s *stubStock) ListLots(_ context.Context, filter lots.ListFilter) ([]lots.Lot, error) {
	s.filters = append(s.filters, filter)
	return s.lots, nil
}

func (s *stubStock) Summary(context.Context) (lots.StockSummary, error) {
	return s.summary, nil
}

type stubSnapshotStore struct {
	saved []lots.ValuationSnapshot
	err   error
}

func (s *stubSnapshotStore) SaveValuationSnapshot(_ context.Context, snap lots.ValuationSnapshot) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, snap)
	return nil
}

type stubEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (s *stubEnqueuer) Enqueue(_ context.Context, task *asynq.Task) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault, Type: task.Type()}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLowStockScanQueriesLowBucket(t *testing.T) {
	stock := &stubStock{lots: []lots.Lot{
		{ID: 1, SKU: "SKU-A", ProductName: "Amber Vase", Balance: 2, Status: lots.LotStatusActive},
	}}
	job := NewLowStockScanJob(stock, testLogger())

	task, err := NewLowStockScanTask(time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, stock.filters, 1)
	require.Equal(t, lots.LotStatusActive, stock.filters[0].Status)
	require.Equal(t, lots.BucketLow, stock.filters[0].Bucket)
}

func TestLowStockScanRejectsMalformedPayload(t *testing.T) {
	job := NewLowStockScanJob(&stubStock{}, testLogger())
	err := job.Handle(context.Background(), asynq.NewTask(TaskLowStockScan, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestValuationSnapshotPublishesGauges(t *testing.T) {
	stock := &stubStock{summary: lots.StockSummary{
		TotalQty:     15,
		TotalValue:   78,
		ActiveLots:   3,
		LowStockLots: 1,
	}}
	metrics := observability.NewMetrics()
	job := NewValuationSnapshotJob(stock, &stubSnapshotStore{}, metrics, testLogger())

	task, err := NewValuationSnapshotTask(time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	require.Contains(t, body, "merx_stock_total_value 78")
	require.Contains(t, body, "merx_stock_active_lots 3")
	require.Contains(t, body, "merx_stock_low_lots 1")
}

func TestValuationSnapshotPersistsHistoryRow(t *testing.T) {
	stock := &stubStock{summary: lots.StockSummary{
		TotalQty:     15,
		TotalValue:   78,
		ActiveLots:   3,
		LowStockLots: 1,
	}}
	history := &stubSnapshotStore{}
	job := NewValuationSnapshotJob(stock, history, observability.NewMetrics(), testLogger())
	job.clock = func() time.Time {
		return time.Date(2025, 4, 1, 7, 0, 0, 0, time.UTC)
	}

	task, err := NewValuationSnapshotTask(time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, history.saved, 1)
	snap := history.saved[0]
	require.True(t, snap.TakenAt.Equal(time.Date(2025, 4, 1, 7, 0, 0, 0, time.UTC)))
	require.InDelta(t, 15, snap.TotalQty, 0.0001)
	require.InDelta(t, 78, snap.TotalValue, 0.0001)
	require.Equal(t, 3, snap.ActiveLots)
	require.Equal(t, 1, snap.LowStockLots)
}

func TestValuationSnapshotFailsWhenHistoryWriteFails(t *testing.T) {
	stock := &stubStock{summary: lots.StockSummary{TotalQty: 1}}
	history := &stubSnapshotStore{err: errors.New("insert failed")}
	job := NewValuationSnapshotJob(stock, history, observability.NewMetrics(), testLogger())

	task, err := NewValuationSnapshotTask(time.Now().UTC())
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}

func TestHandlerEnqueuesOnDemandValuationSnapshot(t *testing.T) {
	client := &stubEnqueuer{}
	handler := NewHandler(nil, client, testLogger())
	router := chi.NewRouter()
	router.Route("/jobs", handler.MountRoutes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/valuation-snapshot", nil))

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Contains(t, rr.Body.String(), `"task_id":"task-1"`)
	require.Len(t, client.tasks, 1)
	require.Equal(t, TaskValuationSnapshot, client.tasks[0].Type())

	var payload ValuationSnapshotPayload
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &payload))
	require.False(t, payload.ScheduledFor.IsZero())
}

func TestHandlerEnqueueReportsBrokerFailure(t *testing.T) {
	client := &stubEnqueuer{err: errors.New("broker down")}
	handler := NewHandler(nil, client, testLogger())
	router := chi.NewRouter()
	router.Route("/jobs", handler.MountRoutes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/valuation-snapshot", nil))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestTaskPayloadCarriesSchedule(t *testing.T) {
	at := time.Date(2025, 4, 1, 7, 0, 0, 0, time.UTC)
	task, err := NewLowStockScanTask(at)
	require.NoError(t, err)
	require.Equal(t, TaskLowStockScan, task.Type())

	var payload LowStockScanPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.True(t, payload.ScheduledFor.Equal(at))
}
