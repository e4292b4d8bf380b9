package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tradesim/internal/app"
	"tradesim/internal/domain"
	"tradesim/internal/strategy/optimization"
)

func printStatus(cmd *cobra.Command, st app.Status) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintf(w, "Run\t%s\n", st.RunID)
	fmt.Fprintf(w, "State\t%s\n", st.State)
	fmt.Fprintf(w, "Iterations\t%d\n", st.Iterations)
	fmt.Fprintf(w, "Trades\t%d\n", st.TotalTrades)
	fmt.Fprintf(w, "Cash\t%.2f\n", st.Cash)
	fmt.Fprintf(w, "Shares\t%d\n", st.Shares)
	fmt.Fprintf(w, "Last price\t%.4f\n", st.LastPrice)
	fmt.Fprintf(w, "Value\t%.2f\n", st.CurrentValue)
	if st.Warning != "" {
		fmt.Fprintf(w, "Warning\t%s\n", st.Warning)
	}
	if st.LastError != "" {
		fmt.Fprintf(w, "Error\t%s\n", st.LastError)
	}
}

func printReport(cmd *cobra.Command, r *domain.PerformanceReport) {
	if r == nil {
		return
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "\n## Performance")
	if r.RunID != "" {
		fmt.Fprintf(w, "Run\t%s\n", r.RunID)
	}
	fmt.Fprintf(w, "Initial value\t%.2f\n", r.InitialCash)
	fmt.Fprintf(w, "Final value\t%.2f\n", r.FinalValue)
	fmt.Fprintf(w, "Total return\t%.2f (%.2f%%)\n", r.TotalReturn, r.TotalReturnPct)
	fmt.Fprintf(w, "Sharpe ratio\t%.4f\n", r.SharpeRatio)
	fmt.Fprintf(w, "Max drawdown\t%.2f%%\n", r.MaxDrawdownPct)
	fmt.Fprintf(w, "Trades\t%d (%d buy / %d sell)\n", r.TotalTrades, r.BuyTrades, r.SellTrades)
	fmt.Fprintf(w, "Win rate\t%.2f%% (%d of %d pairs)\n", r.WinRatePct, r.WinningPairs, r.CompletedPairs)
	fmt.Fprintf(w, "Avg trade price\t%.4f\n", r.AvgTradePrice)
	fmt.Fprintf(w, "Fees\t%.2f\n", r.TotalFees)
	fmt.Fprintf(w, "Profitable\t%t\n", r.IsProfitable)
}

func printTrades(cmd *cobra.Command, trades []domain.Trade) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
	defer w.Flush()
	fmt.Fprintln(w, "Timestamp\tSymbol\tSide\tQuantity\tPrice\tCommission\tReason\t")
	for _, t := range trades {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4f\t%.4f\t%s\t\n",
			t.Timestamp.Format(time.RFC3339), t.Symbol, t.Side, t.Quantity, t.Price, t.Commission, t.Reason)
	}
}

func printOptimization(cmd *cobra.Command, results []optimization.OptimizationResult) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
	defer w.Flush()
	fmt.Fprintln(w, "Short\tLong\tMode\tScore\tReturn%\tSharpe\tMaxDD%\tWinRate%\tTrades\t")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%d\t%s\t%.4f\t%.2f\t%.4f\t%.2f\t%.2f\t%d\t\n",
			r.Parameters.ShortWindow, r.Parameters.LongWindow, r.Parameters.Mode, r.Score,
			r.Report.TotalReturnPct, r.Report.SharpeRatio, r.Report.MaxDrawdownPct, r.Report.WinRatePct, r.Report.TotalTrades)
	}
}
