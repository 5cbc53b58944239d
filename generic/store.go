/*
store.go - Persistence interface for runs, mappings and ledgers

PURPOSE:
  The core is a pure transform; persistence belongs to its collaborators.
  RunStore is the interface between the CLI/API and the database so that
  every reconciliation and allocation leaves an audit trail.

KEY INTERFACES:
  RunStore: run history, latest asset mapping, exported ledgers

APPEND-ONLY CONTRACT:
  - SaveRun():      one row per run, never updated
  - SaveMapping():  stores a NEW mapping version; older versions stay
  - AppendLedger(): stores the allocation run and its export together;
                    rejects a second export of the same document number

IDEMPOTENCY:
  The document number is the idempotency key of a ledger export. Booking
  the same invoice twice is the error this prevents.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: stored row types
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// RUN - Audit record of one pipeline invocation
// =============================================================================

type RunKind string

const (
	RunReconciliation RunKind = "reconciliation"
	RunAllocation     RunKind = "allocation"
)

type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunBlocked   RunStatus = "blocked" // allocation gate failed
)

// Run records what a pipeline invocation consumed and produced.
type Run struct {
	ID         string
	Kind       RunKind
	Status     RunStatus
	Threshold  int
	Stats      map[string]int
	MissingIDs []string // allocation gate report, sorted
	Reference  string   // document number for allocation runs
	CreatedAt  time.Time
}

// =============================================================================
// RUN STORE
// =============================================================================

// RunStore persists run history, mapping versions and ledger exports.
type RunStore interface {
	// SaveRun records a run.
	SaveRun(ctx context.Context, run Run) error

	// GetRun returns ErrRunNotFound when id is unknown.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs newest first. Empty kind lists all.
	ListRuns(ctx context.Context, kind RunKind) ([]Run, error)

	// SaveMapping stores the mapping produced by runID as the latest version.
	SaveMapping(ctx context.Context, runID string, rows []AssetMapping) error

	// LatestMapping returns ErrMappingNotFound when nothing was stored.
	LatestMapping(ctx context.Context) ([]AssetMapping, error)

	// AppendLedger stores the run that produced ledger and the ledger itself,
	// both or neither. Returns ErrDuplicateIdempotencyKey when the document
	// number was already exported.
	AppendLedger(ctx context.Context, run Run, ledger *Ledger) error

	// LoadLedger returns ErrLedgerNotFound when the document number is unknown.
	LoadLedger(ctx context.Context, documentNumber string) (*Ledger, error)
}
