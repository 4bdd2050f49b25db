package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wowseoweb3/dashboard-indexer/internal/app"
	"github.com/wowseoweb3/dashboard-indexer/internal/config"
	"github.com/wowseoweb3/dashboard-indexer/internal/domain/pricing"
	"github.com/wowseoweb3/dashboard-indexer/internal/infrastructure/database"
)

const version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli carries the state shared by the subcommands
type cli struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "admin",
		Short:         "Operator commands for the dashboard indexer",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	loadConfig := func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		c.cfg = cfg
		c.logger = app.NewLogger(cfg.Log)
		return nil
	}

	var down int
	migrateCmd := &cobra.Command{
		Use:     "migrate",
		Short:   "Apply pending database migrations, or roll back with --down",
		Args:    cobra.NoArgs,
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.migrate(cmd.OutOrStdout(), down)
		},
	}
	migrateCmd.Flags().IntVar(&down, "down", 0, "number of migrations to roll back")

	var indexerID string
	runBatchCmd := &cobra.Command{
		Use:     "run-batch",
		Short:   "Run one indexing batch for an indexer",
		Args:    cobra.NoArgs,
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app.App) error {
				result, err := a.Indexers.RunBatch(cmd.Context(), indexerID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	runBatchCmd.Flags().StringVar(&indexerID, "indexer", "", "indexer id")
	_ = runBatchCmd.MarkFlagRequired("indexer")

	toolIDCmd := &cobra.Command{
		Use:   "tool-id NAME...",
		Short: "Print the registry key of tool names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printToolIDs(cmd.OutOrStdout(), args)
		},
	}

	quoteCmd := &cobra.Command{
		Use:     "quote NAME...",
		Short:   "Price a tool selection from the local price mirror",
		Args:    cobra.MinimumNArgs(1),
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app.App) error {
				quote, err := a.Pricing.Quote(cmd.Context(), args)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), quote)
			})
		},
	}

	syncPricesCmd := &cobra.Command{
		Use:     "sync-prices",
		Short:   "Refresh the local price mirror from the contract",
		Args:    cobra.NoArgs,
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app.App) error {
				prices, err := a.Pricing.SyncRegistry(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), prices)
			})
		},
	}

	setPriceCmd := &cobra.Command{
		Use:     "set-price NAME PRICE",
		Short:   "Set a tool price on-chain, in payment token base units",
		Args:    cobra.ExactArgs(2),
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app.App) error {
				result, err := a.Pricing.SetToolPrice(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	root.AddCommand(migrateCmd, runBatchCmd, toolIDCmd, quoteCmd, syncPricesCmd, setPriceCmd)
	return root
}

func (c *cli) migrate(out io.Writer, down int) error {
	db, err := database.NewPostgresDB(c.cfg.Database, c.logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if down > 0 {
		n, err := database.RollbackMigrations(db.DB().DB, down)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "rolled back %d migrations\n", n)
		return nil
	}

	n, err := db.Migrate()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "applied %d migrations\n", n)
	return nil
}

// withApp builds the full application around fn. Prices are synced only by
// the commands that ask for it.
func (c *cli) withApp(fn func(a *app.App) error) error {
	defer c.logger.Sync()

	a, err := app.New(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}

func printToolIDs(out io.Writer, names []string) error {
	for _, name := range names {
		line := fmt.Sprintf("%s\t%s", name, pricing.DeriveToolID(name).Hex())
		if !pricing.ToolName(name).Valid() {
			line += "\t(not in catalogue)"
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
