package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/warp/fleet-ledger/fleet"
	"github.com/warp/fleet-ledger/generic"
	"github.com/warp/fleet-ledger/tabular"
)

// Output workbooks of the reconcile command.
const (
	missingInHRFile = "missing_in_hr.xlsx"
	mismatchFile    = "costcenter_mismatch.xlsx"
	mappingFile     = "fleet_mapping_refreshed.xlsx"
)

func newReconcileCmd(a *app) *cobra.Command {
	var fleetPath, hrPath, outDir string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile the fleet registry against the HR roster",
		Long: `Matches every fleet driver to the HR roster by fuzzy full name and writes:

  missing_in_hr.xlsx             fleet drivers HR doesn't know
  costcenter_mismatch.xlsx       matched drivers with different cost centers
  fleet_mapping_refreshed.xlsx   one row per license plate with its cost center`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runReconcile(cmd, fleetPath, hrPath, outDir)
		},
	}

	f := cmd.Flags()
	f.StringVar(&fleetPath, "fleet", "", "fleet export (.xlsx or .csv)")
	f.StringVar(&hrPath, "hr", "", "HR roster (.xlsx or .csv)")
	f.StringVar(&outDir, "out-dir", ".", "directory for the output workbooks")
	f.Int("threshold", fleet.DefaultThreshold, "minimum match score (0-100)")
	f.Bool("exclude-pool", true, "skip pool cars in the missing report")
	f.Int("workers", 1, "parallel matcher workers")
	_ = cmd.MarkFlagRequired("fleet")
	_ = cmd.MarkFlagRequired("hr")

	a.bind(cmd, "reconcile.threshold", "threshold")
	a.bind(cmd, "reconcile.exclude_pool", "exclude-pool")
	a.bind(cmd, "reconcile.workers", "workers")

	return cmd
}

func (a *app) runReconcile(cmd *cobra.Command, fleetPath, hrPath, outDir string) error {
	ctx := cmd.Context()
	cols := a.cfg.Columns
	csvOpts := a.cfg.CSVOptions()

	fleetTable, err := readTable(fleetPath, csvOpts)
	if err != nil {
		return err
	}
	records, err := fleet.RecordsFromTable(fleetTable, cols)
	if err != nil {
		return err
	}

	hrTable, err := readTable(hrPath, csvOpts)
	if err != nil {
		return err
	}
	hr, hasDesc, err := fleet.HRFromTable(hrTable, cols)
	if err != nil {
		return err
	}
	if !hasDesc {
		a.log.Warn().Str("column", cols.HRDescription).Msg("HR roster has no description column, mismatch report leaves it empty")
	}

	opts := a.cfg.FleetOptions()
	result, err := fleet.Reconcile(hr, records, opts)
	if err != nil {
		return err
	}
	mapping := fleet.BuildMapping(records)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	outputs := []struct {
		name  string
		table *tabular.Table
	}{
		{missingInHRFile, fleet.MissingTable(result.MissingInHR, cols)},
		{mismatchFile, fleet.MismatchTable(result.Mismatches, cols)},
		{mappingFile, fleet.MappingTable(mapping, cols)},
	}
	for _, o := range outputs {
		if err := tabular.WriteXLSX(filepath.Join(outDir, o.name), o.table); err != nil {
			return err
		}
	}

	runID := uuid.NewString()
	st, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()
	if st != nil {
		run := generic.Run{
			ID:        runID,
			Kind:      generic.RunReconciliation,
			Status:    generic.RunCompleted,
			Threshold: opts.Threshold,
			Stats:     result.Stats.Map(),
			CreatedAt: time.Now().UTC(),
		}
		run.Stats["mapping_rows"] = len(mapping)
		if err := st.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		if err := st.SaveMapping(ctx, runID, mapping); err != nil {
			return fmt.Errorf("save mapping: %w", err)
		}
	}

	a.log.Info().
		Str("run_id", runID).
		Int("fleet_records", result.Stats.FleetRecords).
		Int("hr_records", len(hr)).
		Int("missing", result.Stats.MissingInHR).
		Int("mismatches", result.Stats.Mismatches).
		Int("mapping_rows", len(mapping)).
		Str("out_dir", outDir).
		Msg("reconciliation finished")

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Missing in HR:        %d\n", len(result.MissingInHR))
	fmt.Fprintf(out, "Cost center mismatch: %d\n", len(result.Mismatches))
	fmt.Fprintf(out, "Mapping rows:         %d\n", len(mapping))
	return nil
}
