/*
reconcile.go - Fleet vs HR reconciliation engine

PURPOSE:
  Runs the fuzzy matcher over every fleet record against the HR roster and
  classifies the outcome.

ALGORITHM:
  1. Derive full names. HR candidates = distinct HR names, first-seen order
  2. Match every fleet name (optionally on a worker pool)
  3. MissingInHR: unmatched AND has a plate AND (ExcludePool => not "pool")
  4. Mismatches:  matched AND cost centers disagree numerically
  5. Outputs keep fleet input order

COST CENTER RULE:
  mismatch = (fleet numeric AND hr numeric AND fleet != hr)
          OR (fleet numeric XOR hr numeric)

  "27100" vs "27100.0" is NOT a mismatch. Comparison is numeric only.

HR LOOKUP:
  Cost center and description are looked up by the matched HR name. When
  the roster lists the same name twice, the LAST row wins.

CONCURRENCY:
  Matching is the only parallel stage. Results are written by index, so
  classification always sees them in input order and only after every
  match of the batch has finished.
*/
package fleet

import (
	"strings"
	"sync"

	"github.com/warp/fleet-ledger/generic"
)

// Reconcile matches fleet against hr and classifies every fleet record.
func Reconcile(hr []HrRecord, fleetRecords []FleetRecord, opts Options) (*Result, error) {
	if err := generic.ValidateThreshold(opts.Threshold); err != nil {
		return nil, err
	}

	candidates, lookup := indexHR(hr)
	matcher := generic.NewMatcher(candidates)

	names := make([]string, len(fleetRecords))
	for i, rec := range fleetRecords {
		names[i], _ = rec.Identity.FullName()
	}
	matches := matchAll(matcher, names, opts.Threshold, opts.Workers)

	result := &Result{
		Matches:     matches,
		MissingInHR: make([]MissingInHR, 0),
		Mismatches:  make([]CostCenterMismatch, 0),
		Stats: Stats{
			FleetRecords: len(fleetRecords),
			HRRecords:    len(hr),
			HRCandidates: len(candidates),
		},
	}

	for i, rec := range fleetRecords {
		m := matches[i]
		if !m.IsMatched {
			result.Stats.Unmatched++
			if !generic.HasAssetID(rec.AssetIdentifiers) {
				continue
			}
			if opts.ExcludePool && isPool(names[i]) {
				result.Stats.ExcludedAsPool++
				continue
			}
			first, _ := generic.CleanText(rec.Identity.FirstName)
			last, _ := generic.CleanText(rec.Identity.LastName)
			result.MissingInHR = append(result.MissingInHR, MissingInHR{
				FirstName:        first,
				LastName:         last,
				FullName:         names[i],
				AssetIdentifiers: rec.AssetIdentifiers,
			})
			continue
		}

		result.Stats.Matched++
		hrRec := lookup[m.Matched]
		if !costCentersDiffer(rec.CostCenter, hrRec.CostCenter) {
			continue
		}
		desc, _ := generic.CleanText(hrRec.Description)
		result.Mismatches = append(result.Mismatches, CostCenterMismatch{
			FullName:         names[i],
			MatchName:        m.Matched,
			MatchScore:       m.Score,
			FleetCostCenter:  rec.CostCenter,
			HRCostCenter:     hrRec.CostCenter,
			HRDescription:    desc,
			AssetIdentifiers: rec.AssetIdentifiers,
		})
	}

	result.Stats.MissingInHR = len(result.MissingInHR)
	result.Stats.Mismatches = len(result.Mismatches)
	return result, nil
}

// CostCentersDiffer reports whether a fleet/HR cost-center pair is a mismatch.
func CostCentersDiffer(fleetCC, hrCC string) bool {
	return costCentersDiffer(fleetCC, hrCC)
}

func costCentersDiffer(fleetCC, hrCC string) bool {
	f := generic.ParseCostCenter(fleetCC)
	h := generic.ParseCostCenter(hrCC)
	switch {
	case f.Numeric && h.Numeric:
		return !f.Value.Equal(h.Value)
	default:
		return f.Numeric != h.Numeric
	}
}

// indexHR returns the distinct HR names in first-seen order and a
// name -> record lookup where the last duplicate wins.
func indexHR(hr []HrRecord) ([]string, map[string]HrRecord) {
	seen := generic.NewOrderedIndex[string, struct{}](len(hr))
	lookup := make(map[string]HrRecord, len(hr))
	for _, rec := range hr {
		name, ok := rec.Identity.FullName()
		if !ok {
			continue
		}
		seen.InsertIfAbsent(name, struct{}{})
		lookup[name] = rec
	}
	return seen.Keys(), lookup
}

func isPool(fullName string) bool {
	return strings.Contains(strings.ToLower(fullName), "pool")
}

// matchAll resolves every name. With workers > 1 the names are fanned out to
// a fixed pool; each result lands at its input index.
func matchAll(m *generic.Matcher, names []string, threshold, workers int) []generic.MatchResult {
	results := make([]generic.MatchResult, len(names))
	if workers <= 1 || len(names) < 2 {
		for i, name := range names {
			results[i] = m.Resolve(name, threshold)
		}
		return results
	}

	if workers > len(names) {
		workers = len(names)
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = m.Resolve(names[i], threshold)
			}
		}()
	}
	for i := range names {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}
