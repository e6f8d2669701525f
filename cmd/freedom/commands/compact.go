package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Merge multi-segment bar partitions",
	Long: `Merges every multi-segment partition of the daily bar store into a
single deduplicated segment. Repeated pulls leave one segment per run
behind; compaction folds them back together.

Example:
  go run ./cmd/freedom compact
  go run ./cmd/freedom compact --ts-code 000001.SZ --year 2024`,
	RunE: runCompact,
}

var (
	compactTsCode string
	compactYear   string
)

func init() {
	rootCmd.AddCommand(compactCmd)

	compactCmd.Flags().StringVar(&compactTsCode, "ts-code", "", "only compact this symbol")
	compactCmd.Flags().StringVar(&compactYear, "year", "", "only compact this partition year")
}

func runCompact(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime()
	if err != nil {
		return err
	}

	result, err := rt.store.CompactBars(cmd.Context(), compactTsCode, compactYear)
	if err != nil {
		return fmt.Errorf("compact: %w", err)
	}

	fmt.Printf("Partitions inspected: %d\n", result.Partitions)
	fmt.Printf("Partitions compacted: %d\n", result.Compacted)
	fmt.Printf("Segments removed:     %d\n", result.SegmentsRemoved)
	fmt.Printf("Segments written:     %d\n", result.SegmentsWritten)
	return nil
}
