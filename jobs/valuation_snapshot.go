package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/merx-ops/merx/internal/lots"
	"github.com/merx-ops/merx/internal/observability"
)

// SnapshotStore persists valuation history rows.
type SnapshotStore interface {
	SaveValuationSnapshot(ctx context.Context, snap lots.ValuationSnapshot) error
}

// ValuationSnapshotJob refreshes the stock valuation gauges and appends a
// valuation history row from the current lot collection.
type ValuationSnapshotJob struct {
	Stock   StockReader
	History SnapshotStore
	Metrics *observability.Metrics
	Logger  *slog.Logger
	clock   func() time.Time
}

// NewValuationSnapshotJob wires dependencies for the snapshot handler.
func NewValuationSnapshotJob(stock StockReader, history SnapshotStore, metrics *observability.Metrics, logger *slog.Logger) *ValuationSnapshotJob {
	return &ValuationSnapshotJob{
		Stock:   stock,
		History: history,
		Metrics: metrics,
		Logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes valuation snapshot tasks.
func (j *ValuationSnapshotJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Stock == nil || j.History == nil || j.Metrics == nil {
		return errors.New("valuation snapshot: handler not configured")
	}
	var payload ValuationSnapshotPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger()
	start := j.clock()

	summary, err := j.Stock.Summary(ctx)
	if err != nil {
		logger.Error("load stock summary", slog.Any("error", err))
		return err
	}

	j.Metrics.SetStockSnapshot(summary.TotalValue, summary.ActiveLots, summary.LowStockLots)

	snap := lots.ValuationSnapshot{
		TakenAt:      start,
		TotalQty:     summary.TotalQty,
		TotalValue:   summary.TotalValue,
		ActiveLots:   summary.ActiveLots,
		LowStockLots: summary.LowStockLots,
	}
	if err := j.History.SaveValuationSnapshot(ctx, snap); err != nil {
		logger.Error("save valuation snapshot", slog.Any("error", err))
		return err
	}

	logger.Info("completed valuation snapshot",
		slog.Float64("total_qty", summary.TotalQty),
		slog.Float64("total_value", summary.TotalValue),
		slog.Int("active_lots", summary.ActiveLots),
		slog.Int("low_stock_lots", summary.LowStockLots),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *ValuationSnapshotJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
