/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

AMOUNTS:
  Amounts travel as strings. Invoice input uses the vendor's locale form
  ("1.234,56"); ledger output uses a plain two-decimal form ("1234.56") and
  null for unknown amounts.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/fleet-ledger/fleet"
	"github.com/warp/fleet-ledger/generic"
)

// =============================================================================
// RECONCILIATION
// =============================================================================

// HRRecordDTO is one HR roster row.
type HRRecordDTO struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	CostCenter  string `json:"cost_center"`
	Description string `json:"description,omitempty"`
}

// FleetRecordDTO is one fleet export row. LicenseNumbers may list several
// comma-separated plates.
type FleetRecordDTO struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	LicenseNumbers string `json:"license_numbers"`
	CostCenter     string `json:"cost_center"`
}

// ReconcileRequest is the body of POST /api/reconciliations. Nil options
// fall back to the server defaults.
type ReconcileRequest struct {
	HR          []HRRecordDTO    `json:"hr"`
	Fleet       []FleetRecordDTO `json:"fleet"`
	Threshold   *int             `json:"threshold,omitempty"`
	ExcludePool *bool            `json:"exclude_pool,omitempty"`
}

// MissingInHRDTO is a fleet driver HR doesn't know.
type MissingInHRDTO struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	FullName       string `json:"full_name"`
	LicenseNumbers string `json:"license_numbers"`
}

// MismatchDTO is a matched driver with disagreeing cost centers.
type MismatchDTO struct {
	FullName        string `json:"full_name"`
	HRMatchName     string `json:"hr_match_name"`
	HRMatchScore    int    `json:"hr_match_score"`
	FleetCostCenter string `json:"fleet_cost_center"`
	HRCostCenter    string `json:"hr_cost_center"`
	HRDescription   string `json:"hr_description,omitempty"`
	LicenseNumbers  string `json:"license_numbers"`
}

// MappingRowDTO is one canonical plate -> cost center row.
type MappingRowDTO struct {
	LicenseNumber string `json:"license_number"`
	CostCenter    string `json:"cost_center"`
	FullName      string `json:"full_name,omitempty"`
}

// ReconcileResponse is returned by POST /api/reconciliations.
type ReconcileResponse struct {
	RunID       string           `json:"run_id"`
	Stats       map[string]int   `json:"stats"`
	MissingInHR []MissingInHRDTO `json:"missing_in_hr"`
	Mismatches  []MismatchDTO    `json:"mismatches"`
	Mapping     []MappingRowDTO  `json:"mapping"`
}

// =============================================================================
// ALLOCATION
// =============================================================================

// InvoiceHeaderDTO carries the invoice metadata. Date is day-first.
type InvoiceHeaderDTO struct {
	Date           string `json:"date"`
	DocumentNumber string `json:"document_number"`
}

// InvoiceLineDTO is one vendor transaction.
type InvoiceLineDTO struct {
	LicenseNumber string `json:"license_number"`
	Gross         string `json:"gross"`
	VAT           string `json:"vat"`
}

// AllocationRequest is the body of POST /api/allocations. When Mapping is
// empty the latest stored mapping is used.
type AllocationRequest struct {
	Header  InvoiceHeaderDTO `json:"header"`
	Lines   []InvoiceLineDTO `json:"lines"`
	Mapping []MappingRowDTO  `json:"mapping,omitempty"`
}

// LedgerEntryDTO is one booking row.
type LedgerEntryDTO struct {
	Kind           string  `json:"kind"`
	BookingDate    string  `json:"booking_date"`
	DocumentDate   string  `json:"document_date"`
	DocumentNumber string  `json:"document_number"`
	OffsetAccount  string  `json:"offset_account"`
	TaxCode        string  `json:"tax_code,omitempty"`
	Account        string  `json:"account,omitempty"`
	Description    string  `json:"description"`
	Amount         *string `json:"amount"`
	CostCenterCode string  `json:"cost_center_code,omitempty"`
}

// LedgerDTO is an exported ledger.
type LedgerDTO struct {
	RunID          string           `json:"run_id,omitempty"`
	DocumentNumber string           `json:"document_number"`
	DocumentDate   string           `json:"document_date"`
	Entries        []LedgerEntryDTO `json:"entries"`
}

// MissingAllocationResponse is returned with 422 when the gate blocks.
type MissingAllocationResponse struct {
	Error           string   `json:"error"`
	RunID           string   `json:"run_id"`
	MissingAssetIDs []string `json:"missing_asset_ids"`
}

// =============================================================================
// RUNS
// =============================================================================

// RunDTO represents a run in API responses.
type RunDTO struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Status     string         `json:"status"`
	Threshold  int            `json:"threshold,omitempty"`
	Stats      map[string]int `json:"stats,omitempty"`
	MissingIDs []string       `json:"missing_ids,omitempty"`
	Reference  string         `json:"reference,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toRunDTO(r generic.Run) RunDTO {
	return RunDTO{
		ID:         r.ID,
		Kind:       string(r.Kind),
		Status:     string(r.Status),
		Threshold:  r.Threshold,
		Stats:      r.Stats,
		MissingIDs: r.MissingIDs,
		Reference:  r.Reference,
		CreatedAt:  r.CreatedAt,
	}
}

func toMappingDTOs(rows []generic.AssetMapping) []MappingRowDTO {
	out := make([]MappingRowDTO, len(rows))
	for i, r := range rows {
		out[i] = MappingRowDTO{
			LicenseNumber: r.AssetID,
			CostCenter:    r.CostCenter.Code(),
			FullName:      r.DriverFullName,
		}
	}
	return out
}

func fromMappingDTOs(rows []MappingRowDTO) []generic.AssetMapping {
	out := make([]generic.AssetMapping, len(rows))
	for i, r := range rows {
		out[i] = generic.AssetMapping{
			AssetID:        r.LicenseNumber,
			CostCenter:     generic.ParseCostCenter(r.CostCenter),
			DriverFullName: r.FullName,
		}
	}
	return out
}

func toLedgerDTO(runID string, l *generic.Ledger) LedgerDTO {
	entries := make([]LedgerEntryDTO, len(l.Entries))
	for i, e := range l.Entries {
		var amount *string
		if e.Amount.Valid {
			s := e.Amount.Decimal.StringFixed(2)
			amount = &s
		}
		entries[i] = LedgerEntryDTO{
			Kind:           string(e.Kind),
			BookingDate:    e.BookingDate,
			DocumentDate:   e.DocumentDate,
			DocumentNumber: e.DocumentNumber,
			OffsetAccount:  e.OffsetAccount,
			TaxCode:        e.TaxCode,
			Account:        e.Account,
			Description:    e.Description,
			Amount:         amount,
			CostCenterCode: e.CostCenterCode,
		}
	}
	return LedgerDTO{
		RunID:          runID,
		DocumentNumber: l.DocumentNumber,
		DocumentDate:   l.DocumentDate,
		Entries:        entries,
	}
}

func toReconcileResponse(runID string, res *fleet.Result, mapping []generic.AssetMapping) ReconcileResponse {
	missing := make([]MissingInHRDTO, len(res.MissingInHR))
	for i, m := range res.MissingInHR {
		missing[i] = MissingInHRDTO{
			FirstName:      m.FirstName,
			LastName:       m.LastName,
			FullName:       m.FullName,
			LicenseNumbers: m.AssetIdentifiers,
		}
	}
	mismatches := make([]MismatchDTO, len(res.Mismatches))
	for i, m := range res.Mismatches {
		mismatches[i] = MismatchDTO{
			FullName:        m.FullName,
			HRMatchName:     m.MatchName,
			HRMatchScore:    m.MatchScore,
			FleetCostCenter: m.FleetCostCenter,
			HRCostCenter:    m.HRCostCenter,
			HRDescription:   m.HRDescription,
			LicenseNumbers:  m.AssetIdentifiers,
		}
	}
	return ReconcileResponse{
		RunID:       runID,
		Stats:       res.Stats.Map(),
		MissingInHR: missing,
		Mismatches:  mismatches,
		Mapping:     toMappingDTOs(mapping),
	}
}
