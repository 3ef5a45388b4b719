package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ozihaynes/hps-dealengine-sub010/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dealengine",
	Short: "Deterministic real-estate underwriting engine",
	Long:  "Computes offer prices, floors, ceilings, and closing costs from deal facts and a layered policy, with a full audit trace and idempotent run records.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
