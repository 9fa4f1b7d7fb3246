package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootFlags struct {
	config  string
	envFile string
}

var rootCmd = &cobra.Command{
	Use:          "feastmetrics",
	Short:        "Restaurant sales ETL",
	Long:         "Downloads the restaurant extracts from S3, computes the sales reports and writes them to PostgreSQL.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.config, "config", "c", "config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&rootFlags.envFile, "env-file", ".env", "Optional .env file with FEASTMETRICS_* overrides")
	rootCmd.AddCommand(runCmd, encryptCmd, decryptCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
