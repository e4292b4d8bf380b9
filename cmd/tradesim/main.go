// tradesim - a single-ticker trading simulator
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tradesim",
		Short: "Single-ticker trading simulator",
		Long: `tradesim pulls bars for one ticker, evaluates a moving-average crossover with RSI and
momentum confirmations, sizes orders under risk rules and applies them to a simulated
cash-and-shares ledger. Configuration comes from the environment or a .env file.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from this file before reading configuration")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(backtestCmd())
	rootCmd.AddCommand(optimizeCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(tradesCmd())
	rootCmd.AddCommand(clearCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tradesim version %s\n", version)
		},
	}
}
