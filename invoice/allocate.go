package invoice

import (
	"sort"
	"strings"

	"github.com/warp/fleet-ledger/generic"
)

// Allocation is one invoice line joined to its cost center.
type Allocation struct {
	Line       Line
	CostCenter generic.CostCenter
}

// Allocate joins lines to mapping by normalized asset id and builds the
// ledger.
//
// STEPS:
//  1. Normalize line ids; lines without an id are dropped silently
//  2. Index the mapping by normalized id, first occurrence wins, then keep
//     only rows whose cost center is numeric
//  3. Left join
//  4. GATE: any unresolved line -> *generic.MissingAllocationError, nil ledger
//  5. Build summary + detail rows
func Allocate(lines []Line, mapping []generic.AssetMapping, header Header, opts LedgerOptions) (*generic.Ledger, error) {
	allocations, err := Join(lines, mapping)
	if err != nil {
		return nil, err
	}
	return BuildLedger(allocations, header, opts), nil
}

// Join performs steps 1-4 of Allocate.
func Join(lines []Line, mapping []generic.AssetMapping) ([]Allocation, error) {
	lookup := numericIndex(mapping)

	allocations := make([]Allocation, 0, len(lines))
	missing := make(map[string]bool)
	for _, line := range lines {
		id, ok := generic.NormalizeAssetID(line.RawAssetID)
		if !ok {
			continue
		}
		line.AssetID = id

		cc, found := lookup[id]
		if !found {
			missing[id] = true
			continue
		}
		allocations = append(allocations, Allocation{Line: line, CostCenter: cc})
	}

	if len(missing) > 0 {
		ids := make([]string, 0, len(missing))
		for id := range missing {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return nil, &generic.MissingAllocationError{AssetIDs: ids}
	}
	return allocations, nil
}

// numericIndex dedupes the mapping by normalized id (first row wins, numeric
// or not) and returns the ids whose surviving row has a numeric cost center.
func numericIndex(mapping []generic.AssetMapping) map[string]generic.CostCenter {
	first := generic.NewOrderedIndex[string, generic.CostCenter](len(mapping))
	for _, row := range mapping {
		id, ok := generic.NormalizeAssetID(row.AssetID)
		if !ok {
			continue
		}
		first.InsertIfAbsent(id, row.CostCenter)
	}

	lookup := make(map[string]generic.CostCenter, first.Len())
	for _, id := range first.Keys() {
		cc, _ := first.Get(id)
		if cc.Numeric {
			lookup[id] = cc
		}
	}
	return lookup
}

func isStandardVAT(vatText, marker string) bool {
	return strings.TrimSpace(vatText) == marker
}
