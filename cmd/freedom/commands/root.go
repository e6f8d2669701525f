// Package commands implements the freedom CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "freedom",
	Short: "freedom - A-share market data and signal backtesting",
	Long: `freedom CLI

Pulls daily A-share market data into a partitioned segment store,
computes technical indicators, and backtests rule-based signal models.

Usage:
  go run ./cmd/freedom [command]

Examples:
  go run ./cmd/freedom api
  go run ./cmd/freedom sync
  go run ./cmd/freedom pull 000001.SZ --start 20230101
  go run ./cmd/freedom backtest 000001.SZ 20230101 20231231 --strategy scored`,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
