/*
handlers.go - HTTP API handlers for reconciliation and invoice allocation

PURPOSE:
  Exposes the reconciliation engine and the invoice allocator via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  fleet and invoice packages. Every call that computes something leaves a
  run record in the store.

ENDPOINTS:
  Reconciliation:
    POST   /api/reconciliations        Match fleet against HR, store mapping

  Allocation:
    POST   /api/allocations            Allocate invoice lines, export ledger
    GET    /api/ledgers?document_number=  Load an exported ledger

  History:
    GET    /api/runs?kind=             List runs, newest first
    GET    /api/runs/{id}              Get one run
    GET    /api/mapping                Latest stored mapping

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (fleet.Reconcile, invoice.Allocate)
  4. Persist run (+ mapping or ledger)
  5. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Run, mapping or ledger not found
  - 409: Ledger for this document number already exported
  - 422: Allocation gate blocked (body lists the missing plates)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/fleet-ledger/fleet"
	"github.com/warp/fleet-ledger/generic"
	"github.com/warp/fleet-ledger/invoice"
	"github.com/warp/fleet-ledger/logging"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 32 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  generic.RunStore
	Fleet  fleet.Options
	Ledger invoice.LedgerOptions

	now   func() time.Time
	newID func() string
}

// NewHandler creates a handler with the given store and defaults.
func NewHandler(store generic.RunStore, fleetOpts fleet.Options, ledgerOpts invoice.LedgerOptions) *Handler {
	return &Handler{
		Store:  store,
		Fleet:  fleetOpts,
		Ledger: ledgerOpts,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// =============================================================================
// RECONCILIATION ENDPOINTS
// =============================================================================

// Reconcile matches fleet records against HR and stores the new mapping.
// POST /api/reconciliations
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	opts := h.Fleet
	if req.Threshold != nil {
		opts.Threshold = *req.Threshold
	}
	if req.ExcludePool != nil {
		opts.ExcludePool = *req.ExcludePool
	}

	hr := make([]fleet.HrRecord, len(req.HR))
	for i, rec := range req.HR {
		hr[i] = fleet.HrRecord{
			Identity:    generic.PersonIdentity{FirstName: rec.FirstName, LastName: rec.LastName},
			CostCenter:  rec.CostCenter,
			Description: rec.Description,
		}
	}
	records := make([]fleet.FleetRecord, len(req.Fleet))
	for i, rec := range req.Fleet {
		records[i] = fleet.FleetRecord{
			Identity:         generic.PersonIdentity{FirstName: rec.FirstName, LastName: rec.LastName},
			AssetIdentifiers: rec.LicenseNumbers,
			CostCenter:       rec.CostCenter,
		}
	}

	result, err := fleet.Reconcile(hr, records, opts)
	if err != nil {
		writeDomainError(w, "Reconciliation failed", err)
		return
	}
	mapping := fleet.BuildMapping(records)

	ctx := r.Context()
	run := generic.Run{
		ID:        h.newID(),
		Kind:      generic.RunReconciliation,
		Status:    generic.RunCompleted,
		Threshold: opts.Threshold,
		Stats:     result.Stats.Map(),
		CreatedAt: h.now(),
	}
	run.Stats["mapping_rows"] = len(mapping)
	if err := h.Store.SaveRun(ctx, run); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save run", err)
		return
	}
	if err := h.Store.SaveMapping(ctx, run.ID, mapping); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save mapping", err)
		return
	}

	log := logging.FromContext(ctx)
	log.Info().
		Str("run_id", run.ID).
		Int("fleet_records", result.Stats.FleetRecords).
		Int("missing", result.Stats.MissingInHR).
		Int("mismatches", result.Stats.Mismatches).
		Int("mapping_rows", len(mapping)).
		Msg("reconciliation finished")

	writeJSON(w, http.StatusOK, toReconcileResponse(run.ID, result, mapping))
}

// GetMapping returns the latest stored mapping.
// GET /api/mapping
func (h *Handler) GetMapping(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.LatestMapping(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to get mapping", err)
		return
	}
	writeJSON(w, http.StatusOK, toMappingDTOs(rows))
}

// =============================================================================
// ALLOCATION ENDPOINTS
// =============================================================================

// Allocate books invoice lines to cost centers. Nothing is exported when a
// single plate can't be allocated.
// POST /api/allocations
func (h *Handler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req AllocationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()
	log := logging.FromContext(ctx)

	mapping := fromMappingDTOs(req.Mapping)
	if len(mapping) == 0 {
		stored, err := h.Store.LatestMapping(ctx)
		if err != nil {
			writeDomainError(w, "No mapping in request and none stored", err)
			return
		}
		mapping = stored
	}

	header := invoice.Header{DocumentNumber: req.Header.DocumentNumber}
	if req.Header.Date != "" {
		date, ok := invoice.ParseDayFirst(req.Header.Date)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid invoice date", errors.New(req.Header.Date))
			return
		}
		header.Date, header.HasDate = date, true
	}

	lines := make([]invoice.Line, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = invoice.NewLine(l.LicenseNumber, l.Gross, l.VAT, h.Ledger.StandardVATMarker)
	}

	run := generic.Run{
		ID:        h.newID(),
		Kind:      generic.RunAllocation,
		Reference: header.DocumentNumber,
		CreatedAt: h.now(),
	}

	ledger, err := invoice.Allocate(lines, mapping, header, h.Ledger)
	var missing *generic.MissingAllocationError
	if errors.As(err, &missing) {
		run.Status = generic.RunBlocked
		run.MissingIDs = missing.AssetIDs
		run.Stats = map[string]int{"lines": len(lines), "missing": len(missing.AssetIDs)}
		if err := h.Store.SaveRun(ctx, run); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save run", err)
			return
		}
		log.Warn().Str("run_id", run.ID).Strs("missing", missing.AssetIDs).Msg("allocation blocked")
		writeJSON(w, http.StatusUnprocessableEntity, MissingAllocationResponse{
			Error:           "Missing cost center allocation",
			RunID:           run.ID,
			MissingAssetIDs: missing.AssetIDs,
		})
		return
	}
	if err != nil {
		writeDomainError(w, "Allocation failed", err)
		return
	}

	run.Status = generic.RunCompleted
	run.Stats = map[string]int{"lines": len(lines), "details": len(ledger.Details())}
	if err := h.Store.AppendLedger(ctx, run, ledger); err != nil {
		writeDomainError(w, "Failed to store ledger", err)
		return
	}

	log.Info().
		Str("run_id", run.ID).
		Str("document_number", ledger.DocumentNumber).
		Int("details", len(ledger.Details())).
		Str("total", ledger.DetailTotal().StringFixed(2)).
		Msg("ledger exported")

	writeJSON(w, http.StatusOK, toLedgerDTO(run.ID, ledger))
}

// GetLedger returns an exported ledger. Document numbers contain '/', so
// they're passed as a query parameter.
// GET /api/ledgers?document_number=25/123456789
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	number := r.URL.Query().Get("document_number")
	if number == "" {
		writeError(w, http.StatusBadRequest, "document_number is required", nil)
		return
	}
	ledger, err := h.Store.LoadLedger(r.Context(), number)
	if err != nil {
		writeDomainError(w, "Failed to get ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerDTO("", ledger))
}

// =============================================================================
// RUN ENDPOINTS
// =============================================================================

// ListRuns returns runs newest first, optionally filtered by kind.
// GET /api/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	kind := generic.RunKind(r.URL.Query().Get("kind"))
	switch kind {
	case "", generic.RunReconciliation, generic.RunAllocation:
	default:
		writeError(w, http.StatusBadRequest, "Invalid run kind", errors.New(string(kind)))
		return
	}

	runs, err := h.Store.ListRuns(r.Context(), kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns one run.
// GET /api/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get run", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(*run))
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeDomainError maps engine errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// requestLogger stores a request-scoped logger carrying the request id.
func requestLogger(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := base.With().Str("request_id", requestID(r)).Logger()
			next.ServeHTTP(w, r.WithContext(logging.WithLogger(r.Context(), log)))
		})
	}
}
