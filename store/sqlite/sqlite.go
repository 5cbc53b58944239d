/*
Package sqlite provides a SQLite-backed implementation of generic.RunStore.

PURPOSE:
  Keeps the audit trail of every reconciliation and allocation run, every
  mapping version the fleet export produced, and every ledger that was
  exported to finance.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on any table
  - A new mapping is a new version; the latest version is the one in use
  - A ledger can be exported once per document number

KEY TABLES:
  runs:             One row per pipeline invocation
  mapping_versions: One row per stored mapping
  mapping_rows:     Plate -> cost center -> driver, per version
  ledgers:          One row per export, unique document number
  ledger_entries:   Summary and detail rows, in export order

INDEXES:
  - idx_runs_kind_created: run history listing (hot path for the API)
  - ledgers.document_number UNIQUE: idempotency key. NULLs are allowed
    repeatedly, so exports without a document number never collide.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's own locking.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/fleet.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - generic/store.go: Interface definition
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/fleet-ledger/generic"
)

// timeLayout sorts lexicographically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements generic.RunStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		threshold INTEGER NOT NULL DEFAULT 0,
		stats_json TEXT,
		missing_json TEXT,
		reference TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_kind_created
		ON runs(kind, created_at);

	CREATE TABLE IF NOT EXISTS mapping_versions (
		version INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS mapping_rows (
		version INTEGER NOT NULL REFERENCES mapping_versions(version),
		position INTEGER NOT NULL,
		asset_id TEXT NOT NULL,
		cost_center TEXT,
		driver_full_name TEXT,
		PRIMARY KEY (version, asset_id)
	);

	CREATE TABLE IF NOT EXISTS ledgers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		document_number TEXT UNIQUE,
		document_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ledger_entries (
		ledger_id INTEGER NOT NULL REFERENCES ledgers(id),
		position INTEGER NOT NULL,
		kind TEXT NOT NULL,
		booking_date TEXT,
		document_date TEXT,
		document_number TEXT,
		offset_account TEXT,
		tax_code TEXT,
		account TEXT,
		description TEXT,
		amount TEXT,
		cost_center_code TEXT,
		PRIMARY KEY (ledger_id, position)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RUNS
// =============================================================================

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveRun records a run.
func (s *Store) SaveRun(ctx context.Context, run generic.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRun(ctx, s.db, run)
}

func insertRun(ctx context.Context, ex execer, run generic.Run) error {
	statsJSON, _ := json.Marshal(run.Stats)
	missingJSON, _ := json.Marshal(run.MissingIDs)
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO runs (id, kind, status, threshold, stats_json, missing_json, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := ex.ExecContext(ctx, query,
		run.ID, run.Kind, run.Status, run.Threshold,
		string(statsJSON), string(missingJSON), nullString(run.Reference),
		createdAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun returns generic.ErrRunNotFound when id is unknown.
func (s *Store) GetRun(ctx context.Context, id string) (*generic.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectRuns+" WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, generic.ErrRunNotFound
	}
	run, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns runs newest first. Empty kind lists all.
func (s *Store) ListRuns(ctx context.Context, kind generic.RunKind) ([]generic.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectRuns
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []generic.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const selectRuns = `
	SELECT id, kind, status, threshold, stats_json, missing_json, reference, created_at
	FROM runs`

func scanRun(rows *sql.Rows) (generic.Run, error) {
	var (
		run         generic.Run
		statsJSON   sql.NullString
		missingJSON sql.NullString
		reference   sql.NullString
		createdAt   string
	)
	err := rows.Scan(&run.ID, &run.Kind, &run.Status, &run.Threshold,
		&statsJSON, &missingJSON, &reference, &createdAt)
	if err != nil {
		return run, fmt.Errorf("failed to scan run: %w", err)
	}

	if statsJSON.Valid && statsJSON.String != "" {
		json.Unmarshal([]byte(statsJSON.String), &run.Stats)
	}
	if missingJSON.Valid && missingJSON.String != "" {
		json.Unmarshal([]byte(missingJSON.String), &run.MissingIDs)
	}
	run.Reference = reference.String
	run.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return run, nil
}

// =============================================================================
// MAPPINGS
// =============================================================================

// SaveMapping stores rows as a new version, atomically.
func (s *Store) SaveMapping(ctx context.Context, runID string, rows []generic.AssetMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO mapping_versions (run_id, created_at) VALUES (?, ?)",
		runID, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to create mapping version: %w", err)
	}
	version, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mapping_rows (version, position, asset_id, cost_center, driver_full_name)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, row := range rows {
		_, err := stmt.ExecContext(ctx, version, i, row.AssetID,
			nullString(row.CostCenter.Raw), nullString(row.DriverFullName))
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("duplicate asset id %q in mapping: %w", row.AssetID, err)
			}
			return fmt.Errorf("failed to save mapping row: %w", err)
		}
	}

	return tx.Commit()
}

// LatestMapping returns generic.ErrMappingNotFound when nothing was stored.
func (s *Store) LatestMapping(ctx context.Context) ([]generic.AssetMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(version) FROM mapping_versions").Scan(&latest); err != nil {
		return nil, fmt.Errorf("failed to query mapping versions: %w", err)
	}
	if !latest.Valid {
		return nil, generic.ErrMappingNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT asset_id, cost_center, driver_full_name
		FROM mapping_rows
		WHERE version = ?
		ORDER BY position ASC
	`, latest.Int64)
	if err != nil {
		return nil, fmt.Errorf("failed to query mapping: %w", err)
	}
	defer rows.Close()

	result := make([]generic.AssetMapping, 0)
	for rows.Next() {
		var (
			row    generic.AssetMapping
			cc     sql.NullString
			driver sql.NullString
		)
		if err := rows.Scan(&row.AssetID, &cc, &driver); err != nil {
			return nil, fmt.Errorf("failed to scan mapping row: %w", err)
		}
		row.CostCenter = generic.ParseCostCenter(cc.String)
		row.DriverFullName = driver.String
		result = append(result, row)
	}
	return result, rows.Err()
}

// =============================================================================
// LEDGERS
// =============================================================================

// AppendLedger stores the run, the export and its entries in one
// transaction. A document number that was already exported yields
// generic.ErrDuplicateIdempotencyKey and stores nothing.
func (s *Store) AppendLedger(ctx context.Context, run generic.Run, ledger *generic.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertRun(ctx, tx, run); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO ledgers (run_id, document_number, document_date, created_at)
		VALUES (?, ?, ?, ?)
	`, run.ID, nullString(ledger.DocumentNumber), nullString(ledger.DocumentDate),
		time.Now().UTC().Format(timeLayout))
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append ledger: %w", err)
	}
	ledgerID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ledger_entries (ledger_id, position, kind, booking_date, document_date,
			document_number, offset_account, tax_code, account, description, amount, cost_center_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range ledger.Entries {
		var amount sql.NullString
		if e.Amount.Valid {
			amount = sql.NullString{String: e.Amount.Decimal.String(), Valid: true}
		}
		_, err := stmt.ExecContext(ctx, ledgerID, i, e.Kind, e.BookingDate, e.DocumentDate,
			e.DocumentNumber, e.OffsetAccount, e.TaxCode, e.Account, e.Description,
			amount, e.CostCenterCode)
		if err != nil {
			return fmt.Errorf("failed to append ledger entry %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// LoadLedger returns generic.ErrLedgerNotFound when the document number is unknown.
func (s *Store) LoadLedger(ctx context.Context, documentNumber string) (*generic.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		ledgerID     int64
		documentDate sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, document_date FROM ledgers WHERE document_number = ?",
		documentNumber,
	).Scan(&ledgerID, &documentDate)
	if err == sql.ErrNoRows {
		return nil, generic.ErrLedgerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, booking_date, document_date, document_number, offset_account,
		       tax_code, account, description, amount, cost_center_code
		FROM ledger_entries
		WHERE ledger_id = ?
		ORDER BY position ASC
	`, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	ledger := &generic.Ledger{DocumentNumber: documentNumber, DocumentDate: documentDate.String}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		ledger.Entries = append(ledger.Entries, e)
	}
	return ledger, rows.Err()
}

func scanEntry(rows *sql.Rows) (generic.LedgerEntry, error) {
	var (
		e                                         generic.LedgerEntry
		bookingDate, documentDate, documentNumber sql.NullString
		offsetAccount, taxCode, account           sql.NullString
		description, amount, costCenterCode       sql.NullString
	)
	err := rows.Scan(&e.Kind, &bookingDate, &documentDate, &documentNumber, &offsetAccount,
		&taxCode, &account, &description, &amount, &costCenterCode)
	if err != nil {
		return e, fmt.Errorf("failed to scan ledger entry: %w", err)
	}

	e.BookingDate = bookingDate.String
	e.DocumentDate = documentDate.String
	e.DocumentNumber = documentNumber.String
	e.OffsetAccount = offsetAccount.String
	e.TaxCode = taxCode.String
	e.Account = account.String
	e.Description = description.String
	e.CostCenterCode = costCenterCode.String
	if amount.Valid {
		d, err := decimal.NewFromString(amount.String)
		if err != nil {
			return e, fmt.Errorf("invalid stored amount %q: %w", amount.String, err)
		}
		e.Amount = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	return e, nil
}

var _ generic.RunStore = (*Store)(nil)

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed"))
}
