package lots

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

var foldCaser = cases.Fold()

// ListLots returns the lots matching the filter, sorted ascending by lot id
// so the display order matches consumption order. Read only.
func (s *Service) ListLots(ctx context.Context, filter ListFilter) ([]Lot, error) {
	collection, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]Lot, 0, len(collection))
	for _, lot := range collection {
		if matchesFilter(lot, filter) {
			matched = append(matched, lot)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

// Summary computes stock totals over active lots, through the Redis cache
// when one is configured.
func (s *Service) Summary(ctx context.Context) (StockSummary, error) {
	if s.cache == nil {
		collection, err := s.repo.LoadAll(ctx)
		if err != nil {
			return StockSummary{}, err
		}
		return computeSummary(collection), nil
	}
	var summary StockSummary
	err := s.cache.FetchJSON(ctx, &summary, func(ctx context.Context) (any, error) {
		collection, err := s.repo.LoadAll(ctx)
		if err != nil {
			return nil, err
		}
		return computeSummary(collection), nil
	})
	if err != nil {
		return StockSummary{}, err
	}
	return summary, nil
}

// computeSummary aggregates quantity and value. Archived lots are excluded
// from every figure.
func computeSummary(collection []Lot) StockSummary {
	var summary StockSummary
	for _, lot := range collection {
		if !lot.Active() {
			continue
		}
		summary.ActiveLots++
		summary.TotalQty += lot.Balance
		summary.TotalValue += lot.Balance * lot.UnitCost
		if lot.Balance > 0 && lot.Balance <= LowStockThreshold {
			summary.LowStockLots++
		}
	}
	return summary
}

func matchesFilter(lot Lot, filter ListFilter) bool {
	if filter.Status != "" && lot.Status != filter.Status {
		return false
	}
	if filter.Supplier != "" && !strings.EqualFold(lot.Supplier, filter.Supplier) {
		return false
	}
	switch filter.Bucket {
	case BucketHasStock:
		if lot.Balance <= 0 {
			return false
		}
	case BucketNoStock:
		if lot.Balance > 0 {
			return false
		}
	case BucketLow:
		if lot.Balance <= 0 || lot.Balance > LowStockThreshold {
			return false
		}
	}
	if filter.Query != "" {
		needle := foldCaser.String(strings.TrimSpace(filter.Query))
		haystack := foldCaser.String(strings.Join([]string{
			lot.SKU,
			lot.ProductName,
			lot.Brand,
			lot.Supplier,
			lot.OrderRef,
			lot.TrackingRef,
			lot.PurchaseDate.Format("2006-01-02"),
		}, "\n"))
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
