package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/merx-ops/merx/internal/lots"
)

// StockReader is the slice of the lot service the background jobs consume.
type StockReader interface {
	ListLots(ctx context.Context, filter lots.ListFilter) ([]lots.Lot, error)
	Summary(ctx context.Context) (lots.StockSummary, error)
}

// LowStockScanJob sweeps active lots and reports those at or below the
// low-stock threshold.
type LowStockScanJob struct {
	Stock  StockReader
	Logger *slog.Logger
	clock  func() time.Time
}

// NewLowStockScanJob wires dependencies for the scan handler.
func NewLowStockScanJob(stock StockReader, logger *slog.Logger) *LowStockScanJob {
	return &LowStockScanJob{
		Stock:  stock,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes low-stock scan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Stock == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger()
	logger.Info("starting low stock scan")
	start := j.clock()

	low, err := j.Stock.ListLots(ctx, lots.ListFilter{
		Status: lots.LotStatusActive,
		Bucket: lots.BucketLow,
	})
	if err != nil {
		logger.Error("list low stock lots", slog.Any("error", err))
		return err
	}

	for _, lot := range low {
		logger.Warn("low stock",
			slog.Int64("lot_id", lot.ID),
			slog.String("sku", lot.SKU),
			slog.String("product", lot.ProductName),
			slog.Float64("balance", lot.Balance),
		)
	}

	logger.Info("completed low stock scan",
		slog.Int("low_lots", len(low)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
