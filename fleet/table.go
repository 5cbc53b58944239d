package fleet

import (
	"strconv"

	"github.com/warp/fleet-ledger/generic"
	"github.com/warp/fleet-ledger/tabular"
)

// =============================================================================
// COLUMN CONFIGURATION
// =============================================================================

// Columns names the source and output columns. Defaults match the fleet
// manager export and the German HR roster.
type Columns struct {
	FleetFirst      string `yaml:"fleet_first"`
	FleetLast       string `yaml:"fleet_last"`
	FleetAssets     string `yaml:"fleet_assets"`
	FleetCostCenter string `yaml:"fleet_cost_center"`

	HRFirst       string `yaml:"hr_first"`
	HRLast        string `yaml:"hr_last"`
	HRCostCenter  string `yaml:"hr_cost_center"`
	HRDescription string `yaml:"hr_description"` // optional in the source

	MappingAsset      string `yaml:"mapping_asset"`
	MappingCostCenter string `yaml:"mapping_cost_center"`
	MappingDriver     string `yaml:"mapping_driver"`
}

// DefaultColumns returns the column names of the fleet manager export and
// the HR roster.
func DefaultColumns() Columns {
	return Columns{
		FleetFirst:      "First name",
		FleetLast:       "Name",
		FleetAssets:     "License Numbers",
		FleetCostCenter: "Cost center",

		HRFirst:       "Vorname",
		HRLast:        "Nachname",
		HRCostCenter:  "Kostenstelle",
		HRDescription: "Bezeichnung d.KST",

		MappingAsset:      "License Number",
		MappingCostCenter: "Cost center",
		MappingDriver:     "FullName",
	}
}

// =============================================================================
// READERS
// =============================================================================

// RecordsFromTable converts a fleet export. All four fleet columns are required.
func RecordsFromTable(t *tabular.Table, c Columns) ([]FleetRecord, error) {
	if err := t.RequireColumns(c.FleetFirst, c.FleetLast, c.FleetAssets, c.FleetCostCenter); err != nil {
		return nil, err
	}
	records := make([]FleetRecord, t.Len())
	for i := range t.Rows {
		records[i] = FleetRecord{
			Identity: generic.PersonIdentity{
				FirstName: t.Value(i, c.FleetFirst),
				LastName:  t.Value(i, c.FleetLast),
			},
			AssetIdentifiers: t.Value(i, c.FleetAssets),
			CostCenter:       t.Value(i, c.FleetCostCenter),
		}
	}
	return records, nil
}

// HRFromTable converts an HR roster. The description column is optional;
// the second return value reports whether it was present.
func HRFromTable(t *tabular.Table, c Columns) ([]HrRecord, bool, error) {
	if err := t.RequireColumns(c.HRFirst, c.HRLast, c.HRCostCenter); err != nil {
		return nil, false, err
	}
	hasDesc := t.Has(c.HRDescription)
	records := make([]HrRecord, t.Len())
	for i := range t.Rows {
		records[i] = HrRecord{
			Identity: generic.PersonIdentity{
				FirstName: t.Value(i, c.HRFirst),
				LastName:  t.Value(i, c.HRLast),
			},
			CostCenter:  t.Value(i, c.HRCostCenter),
			Description: t.Value(i, c.HRDescription),
		}
	}
	return records, hasDesc, nil
}

// MappingFromTable reads a previously exported mapping. Asset ids are kept as
// written; the allocator normalizes them. The driver column is optional.
func MappingFromTable(t *tabular.Table, c Columns) ([]generic.AssetMapping, error) {
	if err := t.RequireColumns(c.MappingAsset, c.MappingCostCenter); err != nil {
		return nil, err
	}
	rows := make([]generic.AssetMapping, t.Len())
	for i := range t.Rows {
		driver, _ := generic.CleanText(t.Value(i, c.MappingDriver))
		rows[i] = generic.AssetMapping{
			AssetID:        t.Value(i, c.MappingAsset),
			CostCenter:     generic.ParseCostCenter(t.Value(i, c.MappingCostCenter)),
			DriverFullName: driver,
		}
	}
	return rows, nil
}

// =============================================================================
// WRITERS
// =============================================================================

// MissingTable renders MissingInHR rows.
func MissingTable(rows []MissingInHR, c Columns) *tabular.Table {
	t := tabular.New("missing_in_hr", c.FleetFirst, c.FleetLast, "FullName", c.FleetAssets)
	for _, r := range rows {
		t.Append(r.FirstName, r.LastName, r.FullName, r.AssetIdentifiers)
	}
	return t
}

// MismatchTable renders CostCenterMismatch rows.
func MismatchTable(rows []CostCenterMismatch, c Columns) *tabular.Table {
	t := tabular.New("costcenter_mismatch",
		"FullName", "HR_MatchName", "HR_MatchScore",
		c.FleetCostCenter, "HR_Kostenstelle", "HR_Bezeichnung_d_KST", c.FleetAssets)
	t.Numeric = map[string]bool{"HR_MatchScore": true}
	for _, r := range rows {
		t.Append(r.FullName, r.MatchName, strconv.Itoa(r.MatchScore),
			r.FleetCostCenter, r.HRCostCenter, r.HRDescription, r.AssetIdentifiers)
	}
	return t
}

// MappingTable renders the canonical mapping.
func MappingTable(rows []generic.AssetMapping, c Columns) *tabular.Table {
	t := tabular.New("fleet_mapping_refreshed", c.MappingAsset, c.MappingCostCenter, c.MappingDriver)
	t.Numeric = map[string]bool{c.MappingCostCenter: true}
	for _, r := range rows {
		t.Append(r.AssetID, r.CostCenter.Code(), r.DriverFullName)
	}
	return t
}
