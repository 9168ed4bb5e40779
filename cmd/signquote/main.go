package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Simplici0/signquote/internal/config"
	"github.com/Simplici0/signquote/internal/db"
	"github.com/Simplici0/signquote/internal/migrations"
	"github.com/Simplici0/signquote/internal/ratecard"
	"github.com/Simplici0/signquote/internal/ratecard/sqlstore"
)

// cli carries the persistent flags and the state built from them before
// any subcommand runs.
type cli struct {
	dbPath      string
	catalogPath string
	verbose     bool

	log *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(nil).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. A nil log is replaced by one built
// from the environment configuration.
func newRootCmd(log *zap.Logger) *cobra.Command {
	c := &cli{log: log}

	root := &cobra.Command{
		Use:   "signquote",
		Short: "Price signage jobs and manage rate cards",
		Long: `signquote prices panel and letter signage against a rate card and
administers the pricing sets stored in the quoting database.

Calculations can run offline against a rate card file (--card) or against
the active pricing set in the database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = c.log.Sync()
		},
	}

	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "sqlite database path (default DB_PATH)")
	root.PersistentFlags().StringVar(&c.catalogPath, "catalog", "", "option catalog YAML (default CATALOG_PATH)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		c.newCalcCmd(),
		c.newCheckCmd(),
		c.newImportCmd(),
		c.newActivateCmd(),
		c.newArchiveCmd(),
		c.newListCmd(),
		c.newSeedCmd(),
		c.newMigrateCmd(),
	)
	return root
}

func (c *cli) init() error {
	cfg := config.Load()
	if c.dbPath == "" {
		c.dbPath = cfg.DBPath
	}
	if c.catalogPath == "" {
		c.catalogPath = cfg.CatalogPath
	}
	if c.log != nil {
		return nil
	}

	if c.verbose {
		cfg.LogLevel = "debug"
	}
	log, err := cfg.Logger()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	for _, w := range cfg.Warnings() {
		log.Debug("config: " + w)
	}
	c.log = log
	return nil
}

// openStore opens and migrates the database. Callers close the returned
// handle once done with the store.
func (c *cli) openStore(ctx context.Context) (*sqlstore.Store, *sql.DB, error) {
	database, err := db.Open(ctx, c.dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database %s: %w", c.dbPath, err)
	}
	if err := migrations.Up(ctx, database); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	c.log.Debug("database ready", zap.String("path", c.dbPath))
	return sqlstore.New(database, c.log.Named("ratecards")), database, nil
}

func (c *cli) catalog() (ratecard.Catalog, error) {
	return config.LoadCatalog(c.catalogPath)
}
