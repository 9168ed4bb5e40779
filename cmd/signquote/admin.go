package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Simplici0/signquote/internal/db"
	"github.com/Simplici0/signquote/internal/migrations"
	"github.com/Simplici0/signquote/internal/ratecard"
	"github.com/Simplici0/signquote/internal/seed"
)

func (c *cli) newImportCmd() *cobra.Command {
	var activate bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Store a rate card file as a new draft pricing set",
		Long: `Imports a YAML or JSON rate card as a draft. A missing id gets a fresh
UUID and a missing version becomes the next version for the name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, database, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			summary, err := store.Save(ctx, doc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s v%d as %s (%s)\n",
				summary.Name, summary.Version, summary.Status, summary.ID)
			if !activate {
				return nil
			}

			catalog, err := c.catalog()
			if err != nil {
				return err
			}
			report, err := store.Activate(ctx, summary.ID, catalog)
			printReport(cmd.OutOrStdout(), report)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "activated %s\n", summary.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&activate, "activate", false, "activate the pricing set once imported")
	return cmd
}

func (c *cli) newActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate ID",
		Short: "Make a complete pricing set the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := c.catalog()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, database, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			report, err := store.Activate(ctx, args[0], catalog)
			if errors.Is(err, ratecard.ErrIncomplete) {
				printReport(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}
			for _, w := range report.Warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "warning  %s\n", w)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "activated %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) newArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive ID",
		Short: "Retire a pricing set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, database, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := store.Archive(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored pricing sets, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, database, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			sets, err := store.List(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tVERSION\tSTATUS\tCREATED")
			for _, s := range sets {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					s.ID, s.Name, s.Version, s.Status, s.CreatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
}

func (c *cli) newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Import and activate the bundled default rate card if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := c.catalog()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, database, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			stats, err := seed.Run(ctx, store, catalog)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seed: %d inserted, %d updated\n", stats.Inserts, stats.Updates)
			return nil
		},
	}
}

func (c *cli) newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := db.Open(ctx, c.dbPath)
			if err != nil {
				return fmt.Errorf("open database %s: %w", c.dbPath, err)
			}
			defer database.Close()

			if err := migrations.Up(ctx, database); err != nil {
				return err
			}
			version, err := migrations.Version(ctx, database)
			if err != nil {
				return err
			}
			c.log.Info("migrations applied", zap.String("db", c.dbPath), zap.Int64("version", version))
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}
}
