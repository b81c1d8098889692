package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"budgetsim/internal/ledger"
	"budgetsim/internal/log"
	"budgetsim/internal/storage"
)

// app carries the state shared by every subcommand. Each root command gets
// its own viper instance so tests can build independent command trees.
type app struct {
	v       *viper.Viper
	cfgFile string
	logger  *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: log.Discard()}

	root := &cobra.Command{
		Use:   "budgetctl",
		Short: "Operator tool for the budget simulation",
		Long: `budgetctl manages a budgetsim database and talks to a running server.

Ledger commands write straight to the SQLite file. A running server sees
those writes once its read cache expires; use the HTTP API when connected
clients must be notified immediately.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ./budgetctl.yaml)")
	pf.String("db", "./data/budgetsim.db", "SQLite database path")
	pf.String("server", "http://localhost:8080", "base URL of a running budgetsim server")
	pf.String("max-amount", "1000", "largest accepted transaction amount, 0 for no cap")
	pf.Bool("allow-overdraft", false, "let withdrawals and payments drive the balance negative")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json, tint)")

	_ = a.v.BindPFlag("database.path", pf.Lookup("db"))
	_ = a.v.BindPFlag("server.url", pf.Lookup("server"))
	_ = a.v.BindPFlag("ledger.max_amount", pf.Lookup("max-amount"))
	_ = a.v.BindPFlag("ledger.allow_overdraft", pf.Lookup("allow-overdraft"))
	_ = a.v.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("logging.format", pf.Lookup("log-format"))

	root.AddCommand(
		a.migrateCmd(),
		a.seedCmd(),
		a.depositCmd(),
		a.withdrawCmd(),
		a.payBillCmd(),
		a.payEmployeeCmd(),
		a.setStatusCmd(),
		a.watchCmd(),
		a.checkLimitsCmd(),
	)
	return root
}

func main() {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("budgetctl")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix("BUDGETCTL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	format := strings.ToLower(a.v.GetString("logging.format"))
	switch format {
	case log.FormatText, log.FormatJSON, log.FormatTint:
	default:
		return fmt.Errorf("invalid log format: %s", format)
	}
	a.logger = log.New(log.Config{
		Level:     log.ParseLevel(a.v.GetString("logging.level")),
		Format:    format,
		Component: log.ComponentCLI,
		Output:    cmd.ErrOrStderr(),
	})
	return nil
}

func (a *app) dbPath() string { return a.v.GetString("database.path") }

func (a *app) serverURL() string {
	return strings.TrimRight(a.v.GetString("server.url"), "/")
}

func (a *app) policy() (ledger.Policy, error) {
	raw := strings.TrimSpace(a.v.GetString("ledger.max_amount"))
	maxAmount, err := decimal.NewFromString(raw)
	if err != nil || maxAmount.IsNegative() {
		return ledger.Policy{}, fmt.Errorf("invalid max amount %q", raw)
	}
	return ledger.Policy{MaxAmount: maxAmount, AllowOverdraft: a.v.GetBool("ledger.allow_overdraft")}, nil
}

// openLedger opens the database, migrating it if needed, and wraps it in the
// ledger service. The caller closes the returned repository.
func (a *app) openLedger() (*ledger.Service, *storage.SQLiteRepository, error) {
	policy, err := a.policy()
	if err != nil {
		return nil, nil, err
	}
	repo, err := storage.NewSQLiteRepository(a.dbPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	svc := ledger.NewService(repo, ledger.WithPolicy(policy), ledger.WithLogger(a.logger))
	return svc, repo, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// commandContext bounds one-shot commands so a wedged database cannot hang the shell.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, 30*time.Second)
}
