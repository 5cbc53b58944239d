/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Schema errors     - Tabular input lacks required columns
  2. Allocation errors - Invoice lines that resolve to no cost center
  3. Store errors      - Persistence failures and lookups

MALFORMED VALUES ARE NOT ERRORS:
  An unparseable currency, cost center or date becomes an absent/unknown
  value and flows through the mismatch and missing rules. Only the cases
  below stop a run.

USAGE:
  ledger, err := invoice.Allocate(lines, mapping, header, opts)
  var missing *generic.MissingAllocationError
  if errors.As(err, &missing) {
      // hand missing.AssetIDs back for the mapping to be fixed
  }

SEE ALSO:
  - invoice/allocate.go: returns MissingAllocationError from the gate
  - tabular/table.go: returns MissingColumnsError
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingColumns is returned when a tabular source lacks required columns.
	ErrMissingColumns = errors.New("missing required columns")

	// ErrColumnNotFound is returned when column inference finds no candidate.
	ErrColumnNotFound = errors.New("column not found")

	// ErrMissingAllocation is returned when at least one invoice line has no
	// cost center. No ledger is produced in that case.
	ErrMissingAllocation = errors.New("missing cost center allocation")

	// ErrInvalidThreshold is returned for match thresholds outside 0-100.
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 100")

	// ErrDuplicateIdempotencyKey is returned when a ledger with the same
	// document number was already exported.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrRunNotFound is returned when a referenced run doesn't exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrMappingNotFound is returned when no asset mapping has been stored yet.
	ErrMappingNotFound = errors.New("mapping not found")

	// ErrLedgerNotFound is returned when no export exists for a document number.
	ErrLedgerNotFound = errors.New("ledger not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MissingColumnsError lists what was required and what the source offered.
type MissingColumnsError struct {
	Source    string
	Missing   []string
	Available []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("[%s] missing required columns: [%s]; available columns: [%s]",
		e.Source, strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}

func (e *MissingColumnsError) Unwrap() error {
	return ErrMissingColumns
}

// MissingAllocationError carries the distinct normalized asset ids, sorted
// ascending, that have no numeric cost center in the mapping.
type MissingAllocationError struct {
	AssetIDs []string
}

func (e *MissingAllocationError) Error() string {
	return fmt.Sprintf("missing cost center mapping for %d asset ids: %s",
		len(e.AssetIDs), strings.Join(e.AssetIDs, ", "))
}

func (e *MissingAllocationError) Unwrap() error {
	return ErrMissingAllocation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingColumns) ||
		errors.Is(err, ErrColumnNotFound) ||
		errors.Is(err, ErrInvalidThreshold) ||
		errors.Is(err, ErrMissingAllocation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrMappingNotFound) ||
		errors.Is(err, ErrLedgerNotFound)
}
