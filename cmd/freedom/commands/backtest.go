package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minqi/freedom/internal/backtest"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [ts_code|all] [start] [end]",
	Short: "Simulate a signal model over stored history",
	Long: `Replays a signal model day by day over stored bars and simulates
whole-lot trades against the resulting signals.

The model sees the symbol's full stored history; only the trades are
restricted to the given date range.

Example:
  go run ./cmd/freedom backtest 000001.SZ 20230101 20231231
  go run ./cmd/freedom backtest all 20230101 20231231 --strategy breakout --cash 50000`,
	Args: cobra.ExactArgs(3),
	RunE: runBacktestCmd,
}

var (
	backtestStrategy string
	backtestCash     float64
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&backtestStrategy, "strategy", "scored", "signal model (breakout|scored)")
	backtestCmd.Flags().Float64Var(&backtestCash, "cash", 100000, "initial cash per symbol")
}

func runBacktestCmd(cmd *cobra.Command, args []string) error {
	fmt.Println("=== freedom Backtest ===")

	name, err := backtest.ParseStrategyName(backtestStrategy)
	if err != nil {
		return err
	}
	target, start, end := args[0], args[1], args[2]

	rt, err := initRuntime()
	if err != nil {
		return err
	}
	engine := backtest.NewEngine(rt.store, rt.log)

	fmt.Printf("\nStrategy: %s\n", name)
	fmt.Printf("Period:   %s ~ %s\n", start, end)
	fmt.Printf("Cash:     %s per symbol\n\n", formatMoney(backtestCash))

	if target == "all" {
		db, cat, err := rt.openCatalog()
		if err != nil {
			return err
		}
		defer db.Close()

		codes, err := resolveTarget(cmd.Context(), cat, target)
		if err != nil {
			return err
		}

		portfolio, err := engine.RunAll(cmd.Context(), name, codes, start, end, backtestCash)
		if err != nil {
			return fmt.Errorf("backtest: %w", err)
		}
		printPortfolioReport(portfolio)
		return nil
	}

	tsCode, cleanup, err := rt.resolveSymbol(cmd.Context(), target)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := engine.RunSymbol(cmd.Context(), name, tsCode, start, end, backtestCash)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	printReport(report)
	return nil
}

func printReport(report *backtest.Report) {
	fmt.Printf("--- %s ---\n", report.TsCode)
	for _, trade := range report.Trades {
		fmt.Printf("%s  %-4s  %8.2f x %6.0f  cash %s\n",
			trade.TradeDate, trade.Action, trade.Price, trade.Shares, formatMoney(trade.Cash))
	}
	if len(report.Trades) == 0 {
		fmt.Println("(no trades)")
	}
	fmt.Println()
	fmt.Printf("Initial cash:   %s\n", formatMoney(report.InitialCash))
	fmt.Printf("Final equity:   %s (cash %s + position %s)\n",
		formatMoney(report.Equity), formatMoney(report.Cash), formatMoney(report.PositionValue))
	fmt.Printf("Profit:         %s (%+.2f%%)\n", formatMoney(report.Profit), report.ReturnRate*100)
}

func printPortfolioReport(portfolio *backtest.PortfolioReport) {
	fmt.Println(strings.Repeat("=", 50))
	for _, report := range portfolio.Reports {
		fmt.Printf("%-10s  trades %3d  profit %14s  %+.2f%%\n",
			report.TsCode, len(report.Trades), formatMoney(report.Profit), report.ReturnRate*100)
	}
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Symbols:      %d (%d simulated, %d skipped)\n",
		portfolio.Symbols, portfolio.Succeeded, portfolio.Skipped)
	fmt.Printf("Total profit: %s (%+.2f%%)\n", formatMoney(portfolio.TotalProfit), portfolio.TotalReturn*100)
}
