package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/childcare-etl/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "childcare-etl",
	Short: "Child-care provider ETL",
	Long:  "Reads the provider workbook's source layouts, normalizes and geocodes every row, and reconciles it into the providers table.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		applyFlags(cmd, cfg)

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runETL(cmd.Context(), cfg, cmd.OutOrStdout())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

// applyFlags overrides config values with explicitly set flags.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	if f := cmd.Flags().Lookup("input"); f != nil && f.Changed {
		c.Input.Path = f.Value.String()
	}
	if f := cmd.Flags().Lookup("db"); f != nil && f.Changed {
		c.Store.DatabaseURL = f.Value.String()
	}
}

func init() {
	rootCmd.Flags().String("input", "", "path to the provider workbook (overrides input.path)")
	rootCmd.PersistentFlags().String("db", "", "SQLite path or Postgres URL (overrides store.database_url)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
