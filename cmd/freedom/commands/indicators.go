package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/minqi/freedom/internal/ingest"
)

var indicatorsCmd = &cobra.Command{
	Use:   "indicators [ts_code|all]",
	Short: "Recompute stored indicators from bars",
	Long: `Recomputes the full indicator set (moving averages, MACD, RSI,
KDJ, Bollinger bands) from stored daily bars and replaces each
symbol's indicator partition.

Example:
  go run ./cmd/freedom indicators 000001.SZ
  go run ./cmd/freedom indicators all --workers 8`,
	Args: cobra.ExactArgs(1),
	RunE: runIndicators,
}

var indicatorWorkers int

func init() {
	rootCmd.AddCommand(indicatorsCmd)

	indicatorsCmd.Flags().IntVar(&indicatorWorkers, "workers", 4, "concurrent symbols")
}

func runIndicators(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime()
	if err != nil {
		return err
	}

	db, cat, err := rt.openCatalog()
	if err != nil {
		return err
	}
	defer db.Close()

	codes, err := resolveTarget(cmd.Context(), cat, args[0])
	if err != nil {
		return err
	}

	svc := rt.newIngest(cat)

	n, err := svc.ComputeIndicators(cmd.Context(), codes, ingest.Config{Workers: indicatorWorkers})
	if err != nil {
		return fmt.Errorf("indicators: %w", err)
	}

	fmt.Printf("Computed indicators for %d of %d symbols\n", n, len(codes))
	return nil
}
