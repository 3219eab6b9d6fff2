package lots

import "sort"

// allocateFIFO draws qty of the given SKU from the collection, oldest lot
// first. Lot ids are assigned from purchase ids, which are monotonically
// increasing, so ascending id order is FIFO order; the stored purchase date is
// never used as a sort key. Mutates the matched lots in place and reports how
// the request was satisfied. Balances never go below zero: a lot is simply
// drained and the walk moves on, and an exhausted collection yields a
// shortfall instead of an error.
func allocateFIFO(collection []*Lot, sku string, qty float64) AllocationResult {
	result := AllocationResult{Allocations: []Allocation{}}
	if qty <= 0 {
		return result
	}

	var candidates []*Lot
	for _, lot := range collection {
		if lot.SKU == sku && lot.Status == LotStatusActive && lot.Balance > 0 {
			candidates = append(candidates, lot)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	remaining := qty
	for _, lot := range candidates {
		if remaining <= 0 {
			break
		}
		take := lot.Balance
		if remaining < take {
			take = remaining
		}
		before := lot.Balance
		lot.Balance -= take
		remaining -= take
		result.Allocations = append(result.Allocations, Allocation{
			LotID:         lot.ID,
			QtyTaken:      take,
			BalanceBefore: before,
			BalanceAfter:  lot.Balance,
		})
	}

	result.QtyAllocated = qty - remaining
	result.QtyShort = remaining
	return result
}

// reverseAllocations restores previously drawn quantities onto their lots.
// The restore is additive onto the current balance, not a reset to
// BalanceBefore, so it composes with consumption that happened on the same
// lot in between. Allocations referencing a missing lot are skipped; reversal
// is best effort per lot. Returns the lots that were actually touched.
func reverseAllocations(collection []*Lot, allocations []Allocation) []*Lot {
	byID := make(map[int64]*Lot, len(collection))
	for _, lot := range collection {
		byID[lot.ID] = lot
	}

	var touched []*Lot
	for _, alloc := range allocations {
		lot, ok := byID[alloc.LotID]
		if !ok {
			continue
		}
		lot.Balance += alloc.QtyTaken
		touched = append(touched, lot)
	}
	return touched
}
