package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the symbol catalog",
	Long: `Replaces the symbol catalog with the provider's current listing
of actively traded symbols.

Example:
  go run ./cmd/freedom sync`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime()
	if err != nil {
		return err
	}

	db, cat, err := rt.openCatalog()
	if err != nil {
		return err
	}
	defer db.Close()

	svc := rt.newIngest(cat)

	n, err := svc.SyncBasic(cmd.Context())
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	fmt.Printf("Synced %d symbols\n", n)
	return nil
}
