/*
main.go - fleetctl entry point

PURPOSE:
  Command-line front end of the fleet ledger tools. Reconciles the fleet
  registry against the HR roster, exports allocated invoice ledgers, and
  serves the HTTP API.

COMMANDS:
  reconcile       Fleet vs HR reconciliation, writes three workbooks
  export-invoice  Allocate a vendor invoice and write the booking CSV
  serve           Run the HTTP API

CONFIGURATION PRECEDENCE:
  flag > FLEET_* environment > .env > --config YAML > defaults
  Flags are bound through viper; only flags given on the command line
  override the loaded configuration.

EXIT CODES:
  0  success
  1  any error
  2  allocation gate failed (missing cost centers were written out)

EXAMPLES:
  fleetctl reconcile --fleet fleet.xlsx --hr hr.xlsx --out-dir out/
  fleetctl export-invoice --invoice dkv.csv --mapping out/fleet_mapping_refreshed.xlsx
  fleetctl serve --port 8080 --db fleet.db

SEE ALSO:
  - config/config.go: Configuration loading
  - reconcile.go, export.go, serve.go: Subcommands
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/warp/fleet-ledger/generic"
)

const (
	exitError = 1
	exitGate  = 2
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	if errors.Is(err, generic.ErrMissingAllocation) {
		os.Exit(exitGate)
	}
	os.Exit(exitError)
}
