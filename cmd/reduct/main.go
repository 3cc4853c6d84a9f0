package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╦═╗┌─┐┌┬┐┬ ┬┌─┐┌┬┐
  ╠╦╝├┤  │││ ││   │
  ╩╚═└─┘─┴┘└─┘└─┘ ┴
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "reduct",
		Short: "Composable state stores for Go",
		Long: `Reduct is a state-management runtime for Go.

A single root state, pure reducers, and scoped child stores over a
coalesced change stream. Features include:

  • One writer loop per store, safe sends from any goroutine
  • Scoped and keyed child stores with stable node identity
  • Effect lifecycle tracking with targeted cancellation
  • Prometheus and OpenTelemetry observers
  • Live HTTP/WebSocket inspector`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		demoCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// printBanner prints the Reduct ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}
