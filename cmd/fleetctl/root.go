package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/warp/fleet-ledger/config"
	"github.com/warp/fleet-ledger/generic"
	"github.com/warp/fleet-ledger/generic/store"
	"github.com/warp/fleet-ledger/logging"
	"github.com/warp/fleet-ledger/store/sqlite"
	"github.com/warp/fleet-ledger/tabular"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	envFile string

	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "fleetctl",
		Short: "Fleet vs HR reconciliation and invoice ledger export",
		Long: `fleetctl reconciles the fleet registry against the HR roster, builds the
license plate -> cost center mapping, and allocates vendor invoices to cost
centers for the ledger import.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (YAML)")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file, ignored when absent")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (console, json)")
	pf.String("db", "", "SQLite path for run history (empty: no persistence)")

	a.bind(root, "log.level", "log-level")
	a.bind(root, "log.format", "log-format")
	a.bind(root, "database.path", "db")

	root.AddCommand(newReconcileCmd(a))
	root.AddCommand(newExportInvoiceCmd(a))
	root.AddCommand(newServeCmd(a))

	return root
}

// bind maps a flag onto a viper key. The key mirrors the YAML path.
func (a *app) bind(cmd *cobra.Command, key, flag string) {
	f := cmd.PersistentFlags().Lookup(flag)
	if f == nil {
		f = cmd.Flags().Lookup(flag)
	}
	if err := a.v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind %s flag: %v", flag, err))
	}
}

// setup loads the configuration, applies explicit flags and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.cfgFile, a.envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a.applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	a.cfg = cfg
	a.log = logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	}).With().Str("command", cmd.Name()).Logger()

	cmd.SetContext(logging.WithLogger(cmd.Context(), a.log))
	return nil
}

// applyFlags copies the flags set on the command line over cfg. viper only
// reports a bound flag as set when it was changed.
func (a *app) applyFlags(cfg *config.Config) {
	v := a.v
	if v.IsSet("log.level") {
		cfg.Log.Level = v.GetString("log.level")
	}
	if v.IsSet("log.format") {
		cfg.Log.Format = strings.ToLower(v.GetString("log.format"))
	}
	if v.IsSet("database.path") {
		cfg.Database.Path = v.GetString("database.path")
	}
	if v.IsSet("reconcile.threshold") {
		cfg.Reconcile.Threshold = v.GetInt("reconcile.threshold")
	}
	if v.IsSet("reconcile.exclude_pool") {
		cfg.Reconcile.ExcludePool = v.GetBool("reconcile.exclude_pool")
	}
	if v.IsSet("reconcile.workers") {
		cfg.Reconcile.Workers = v.GetInt("reconcile.workers")
	}
	if v.IsSet("csv.encoding") {
		cfg.CSV.Encoding = v.GetString("csv.encoding")
	}
	if v.IsSet("csv.separator") {
		cfg.CSV.Separator = v.GetString("csv.separator")
	}
	if v.IsSet("server.port") {
		cfg.Server.Port = v.GetInt("server.port")
	}
}

// openStore opens the configured run store. With no database path the CLI
// runs without persistence and returns a nil store.
func (a *app) openStore() (generic.RunStore, func(), error) {
	path := a.cfg.Database.Path
	if path == "" {
		return nil, func() {}, nil
	}
	s, err := sqlite.New(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open run store: %w", err)
	}
	return s, func() { s.Close() }, nil
}

// openServerStore is openStore for the API, which always needs a store.
func (a *app) openServerStore() (generic.RunStore, func(), error) {
	if a.cfg.Database.Path == "" {
		a.log.Warn().Msg("no database configured, run history is kept in memory")
		return store.NewMemory(), func() {}, nil
	}
	return a.openStore()
}

// readTable reads an .xlsx workbook or a delimited text file.
func readTable(path string, opts tabular.CSVOptions) (*tabular.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return tabular.ReadXLSX(path)
	case ".csv", ".txt":
		return tabular.ReadCSVFile(path, opts)
	default:
		return nil, fmt.Errorf("%s: unsupported file type (want .xlsx or .csv)", path)
	}
}
