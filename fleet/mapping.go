package fleet

import "github.com/warp/fleet-ledger/generic"

// BuildMapping expands every record's plate field into one canonical row per
// normalized plate. A plate that appears on several records keeps the row of
// the first record listing it; order follows (record, plate-within-record).
// Records without plates contribute nothing.
func BuildMapping(records []FleetRecord) []generic.AssetMapping {
	index := generic.NewOrderedIndex[string, generic.AssetMapping](len(records))
	for _, rec := range records {
		ids := generic.SplitAssetIDs(rec.AssetIdentifiers)
		if len(ids) == 0 {
			continue
		}
		driver, _ := rec.Identity.FullName()
		cc := generic.ParseCostCenter(rec.CostCenter)
		for _, id := range ids {
			index.InsertIfAbsent(id, generic.AssetMapping{
				AssetID:        id,
				CostCenter:     cc,
				DriverFullName: driver,
			})
		}
	}
	return index.Values()
}
