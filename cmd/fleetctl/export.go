package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/warp/fleet-ledger/fleet"
	"github.com/warp/fleet-ledger/generic"
	"github.com/warp/fleet-ledger/invoice"
	"github.com/warp/fleet-ledger/tabular"
)

const missingCostCentersFile = "missing_costcenters.xlsx"

func newExportInvoiceCmd(a *app) *cobra.Command {
	var invoicePath, mappingPath, outPath, missingOut string

	cmd := &cobra.Command{
		Use:   "export-invoice",
		Short: "Allocate a vendor invoice to cost centers and write the booking CSV",
		Long: `Reads the vendor detail export, joins every line to the license plate
mapping and writes the ledger import file.

When any plate has no numeric cost center nothing is exported: the missing
plates are written to missing_costcenters.xlsx and the command exits with
status 2. Without --mapping the latest mapping in the run store is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runExportInvoice(cmd, invoicePath, mappingPath, outPath, missingOut)
		},
	}

	f := cmd.Flags()
	f.StringVar(&invoicePath, "invoice", "", "vendor detail export (.csv or .xlsx)")
	f.StringVar(&mappingPath, "mapping", "", "mapping workbook (default: latest stored mapping)")
	f.StringVar(&outPath, "out", "invoice_booking_export.csv", "booking CSV to write")
	f.StringVar(&missingOut, "missing-out", "", "gate report path (default: next to --out)")
	f.String("encoding", "", "CSV encoding (latin1, utf-8)")
	f.String("sep", "", "CSV separator")
	_ = cmd.MarkFlagRequired("invoice")

	a.bind(cmd, "csv.encoding", "encoding")
	a.bind(cmd, "csv.separator", "sep")

	return cmd
}

func (a *app) runExportInvoice(cmd *cobra.Command, invoicePath, mappingPath, outPath, missingOut string) error {
	ctx := cmd.Context()
	csvOpts := a.cfg.CSVOptions()

	st, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	feed, err := readTable(invoicePath, csvOpts)
	if err != nil {
		return err
	}
	lines, header, err := invoice.FeedFromTable(feed, a.cfg.Feed, a.cfg.Ledger)
	if err != nil {
		return err
	}
	if !header.HasDate {
		a.log.Warn().Str("invoice", invoicePath).Msg("invoice date not found, dates are left empty")
	}
	if header.DocumentNumber == "" {
		a.log.Warn().Str("invoice", invoicePath).Msg("document number not found")
	}

	var mapping []generic.AssetMapping
	switch {
	case mappingPath != "":
		t, err := readTable(mappingPath, csvOpts)
		if err != nil {
			return err
		}
		if mapping, err = fleet.MappingFromTable(t, a.cfg.Columns); err != nil {
			return err
		}
	case st != nil:
		if mapping, err = st.LatestMapping(ctx); err != nil {
			return fmt.Errorf("load stored mapping: %w", err)
		}
	default:
		return errors.New("--mapping is required when no run store is configured")
	}

	run := generic.Run{
		ID:        uuid.NewString(),
		Kind:      generic.RunAllocation,
		Reference: header.DocumentNumber,
		CreatedAt: time.Now().UTC(),
	}

	ledger, err := invoice.Allocate(lines, mapping, header, a.cfg.Ledger)
	var missing *generic.MissingAllocationError
	if errors.As(err, &missing) {
		if missingOut == "" {
			missingOut = filepath.Join(filepath.Dir(outPath), missingCostCentersFile)
		}
		if werr := tabular.WriteXLSX(missingOut, invoice.MissingTable(missing.AssetIDs)); werr != nil {
			return werr
		}
		if st != nil {
			run.Status = generic.RunBlocked
			run.MissingIDs = missing.AssetIDs
			run.Stats = map[string]int{"lines": len(lines), "missing": len(missing.AssetIDs)}
			if serr := st.SaveRun(ctx, run); serr != nil {
				return fmt.Errorf("save run: %w", serr)
			}
		}
		a.log.Error().
			Str("run_id", run.ID).
			Strs("missing", missing.AssetIDs).
			Str("report", missingOut).
			Msg("allocation blocked, no ledger written")
		return err
	}
	if err != nil {
		return err
	}

	// Write beside the target, record, then rename into place.
	tmpPath := filepath.Join(filepath.Dir(outPath), "."+filepath.Base(outPath)+"."+run.ID+".tmp")
	if err := invoice.WriteLedgerCSV(tmpPath, ledger, a.cfg.Ledger, csvOpts); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if st != nil {
		run.Status = generic.RunCompleted
		run.Stats = map[string]int{"lines": len(lines), "details": len(ledger.Details())}
		if err := st.AppendLedger(ctx, run, ledger); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("document %q: %w", ledger.DocumentNumber, err)
		}
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("export recorded but not moved into place, file kept at %s: %w", tmpPath, err)
	}

	a.log.Info().
		Str("run_id", run.ID).
		Str("document_number", ledger.DocumentNumber).
		Int("details", len(ledger.Details())).
		Str("total", ledger.DetailTotal().StringFixed(2)).
		Str("out", outPath).
		Msg("ledger exported")

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d lines to %s\n", len(ledger.Details()), outPath)
	return nil
}
