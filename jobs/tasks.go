package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan sweeps active lots for balances at or below the
	// low-stock threshold.
	TaskLowStockScan = "lots:low_stock_scan"
	// TaskValuationSnapshot refreshes the stock valuation gauges.
	TaskValuationSnapshot = "lots:valuation_snapshot"
)

// LowStockScanPayload carries scheduling metadata for the scan.
type LowStockScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs an Asynq task for the low-stock sweep.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// ValuationSnapshotPayload carries scheduling metadata for the snapshot.
type ValuationSnapshotPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewValuationSnapshotTask constructs an Asynq task for the valuation snapshot.
func NewValuationSnapshotTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ValuationSnapshotPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskValuationSnapshot, body, asynq.Queue(QueueDefault)), nil
}
