/*
Package fleet reconciles the fleet registry against the HR roster.

PURPOSE:
  Fleet management and HR maintain their own copies of who drives which
  car and which cost center pays for it. This package finds the drivers HR
  doesn't know about, the drivers whose cost centers disagree, and builds
  the canonical plate -> cost center mapping used for invoice allocation.

KEY CONCEPTS:
  - FleetRecord:        one fleet export row (may list several plates)
  - HrRecord:           one HR roster row
  - MissingInHR:        fleet driver with a car but no HR match
  - CostCenterMismatch: matched driver whose cost centers differ numerically

FLOW:
  HR + Fleet --Reconcile--> Matches, MissingInHR, Mismatches
  Fleet      --BuildMapping--> []generic.AssetMapping

SEE ALSO:
  - reconcile.go: reconciliation engine
  - mapping.go: mapping builder
  - table.go: tabular adapters
*/
package fleet

import "github.com/warp/fleet-ledger/generic"

// =============================================================================
// INPUT RECORDS
// =============================================================================

// FleetRecord is one row of the fleet export. AssetIdentifiers is the raw
// plate field and may hold several comma-separated plates.
type FleetRecord struct {
	Identity         generic.PersonIdentity
	AssetIdentifiers string
	CostCenter       string
}

// HrRecord is one row of the HR roster.
type HrRecord struct {
	Identity    generic.PersonIdentity
	CostCenter  string
	Description string
}

// =============================================================================
// OUTPUT ROWS
// =============================================================================

// MissingInHR is a fleet driver with at least one car and no HR match.
type MissingInHR struct {
	FirstName        string
	LastName         string
	FullName         string
	AssetIdentifiers string
}

// CostCenterMismatch is a matched driver whose fleet and HR cost centers
// disagree. Both raw values are carried unchanged.
type CostCenterMismatch struct {
	FullName         string
	MatchName        string
	MatchScore       int
	FleetCostCenter  string
	HRCostCenter     string
	HRDescription    string
	AssetIdentifiers string
}

// =============================================================================
// OPTIONS & RESULT
// =============================================================================

// DefaultThreshold is the acceptance score used when none is configured.
const DefaultThreshold = 95

// Options controls a reconciliation run.
type Options struct {
	Threshold   int  // 0-100, inclusive acceptance bound
	ExcludePool bool // drop "pool" cars from MissingInHR
	Workers     int  // parallel matchers; <= 1 runs sequentially
}

// DefaultOptions returns the options the fleet team runs with.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, ExcludePool: true, Workers: 1}
}

// Result holds every reconciliation output, each in fleet input order.
type Result struct {
	Matches     []generic.MatchResult // one per fleet record
	MissingInHR []MissingInHR
	Mismatches  []CostCenterMismatch
	Stats       Stats
}

// Stats summarizes a run.
type Stats struct {
	FleetRecords   int
	HRRecords      int
	HRCandidates   int
	Matched        int
	Unmatched      int
	MissingInHR    int
	Mismatches     int
	ExcludedAsPool int
}

// Map flattens Stats for run records and logs.
func (s Stats) Map() map[string]int {
	return map[string]int{
		"fleet_records":    s.FleetRecords,
		"hr_records":       s.HRRecords,
		"hr_candidates":    s.HRCandidates,
		"matched":          s.Matched,
		"unmatched":        s.Unmatched,
		"missing_in_hr":    s.MissingInHR,
		"mismatches":       s.Mismatches,
		"excluded_as_pool": s.ExcludedAsPool,
	}
}
