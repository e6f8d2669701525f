package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/minqi/freedom/internal/catalog"
	"github.com/minqi/freedom/internal/ingest"
)

var pullCmd = &cobra.Command{
	Use:   "pull [ts_code|all]",
	Short: "Pull daily history into the segment store",
	Long: `Pulls daily bars, adjustment factors and price limits for one
symbol or for the whole main-board universe, and appends them to the
segment store. Already-stored rows are skipped.

Example:
  go run ./cmd/freedom pull 000001.SZ --start 20200101
  go run ./cmd/freedom pull all --start 20240101 --end 20241231`,
	Args: cobra.ExactArgs(1),
	RunE: runPull,
}

var (
	pullStart   string
	pullEnd     string
	pullWorkers int
)

func init() {
	rootCmd.AddCommand(pullCmd)

	pullCmd.Flags().StringVar(&pullStart, "start", "", "start date (YYYYMMDD)")
	pullCmd.Flags().StringVar(&pullEnd, "end", "", "end date (YYYYMMDD)")
	pullCmd.Flags().IntVar(&pullWorkers, "workers", 4, "concurrent symbols")
}

func runPull(cmd *cobra.Command, args []string) error {
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

	results, err := svc.PullDaily(cmd.Context(), codes, pullStart, pullEnd, ingest.Config{Workers: pullWorkers})
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}

	bars, failed := 0, 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Printf("  %s: %v\n", res.TsCode, res.Err)
			continue
		}
		bars += res.Bars
	}

	fmt.Printf("Pulled %d new bars for %d symbols (%d failed)\n", bars, len(results)-failed, failed)
	return nil
}

// resolveTarget maps a CLI symbol argument to a list of ts_codes:
// "all" selects the main-board universe, anything else resolves one
// symbol through the catalog.
func resolveTarget(ctx context.Context, cat *catalog.Repository, arg string) ([]string, error) {
	if arg == "all" {
		codes, err := cat.ListTsCodes(ctx, catalog.MainBoardPrefixes)
		if err != nil {
			return nil, fmt.Errorf("list universe: %w", err)
		}
		if len(codes) == 0 {
			return nil, fmt.Errorf("catalog is empty, run sync first")
		}
		return codes, nil
	}

	tsCode, err := cat.ResolveTsCode(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", arg, err)
	}
	return []string{tsCode}, nil
}
