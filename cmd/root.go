package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radius-labs/visibility-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "visibility-cli",
	Short: "AI visibility analyzer",
	Long:  "Crawls a domain, synthesizes a knowledge profile, asks conversational AI platforms about it, and scores how visible the brand is in their answers.",
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
