// Command problemctl queries the problem index from the terminal.
//
// With --addr it talks to a running problemindex over RPC; otherwise it
// builds the index in-process from --dir and answers locally.
//
// Usage:
//
//	problemctl --dir ./data lookup "two sum" --window 30
//	problemctl --addr localhost:9100 search sum --limit 5
//	problemctl --addr localhost:9100 companies Google --window 90
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/logger"
)

var (
	addr     string
	dataDir  string
	timeout  time.Duration
	asJSON   bool
	logLevel string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "problemctl",
		Short:        "Query the company interview-problem index",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(logger.New(os.Stderr, logLevel, "text"))
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&addr, "addr", "", "RPC address of a running problemindex (host:port)")
	flags.StringVar(&dataDir, "dir", "data", "company data directory for local mode")
	flags.DurationVar(&timeout, "timeout", 30*time.Second, "overall command timeout")
	flags.BoolVar(&asJSON, "json", false, "print raw JSON")
	flags.StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newLookupCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newCompaniesCmd())
	rootCmd.AddCommand(newKeysCmd())

	return rootCmd
}

// withBackend opens the selected backend, runs fn and closes it.
func withBackend(cmd *cobra.Command, fn func(ctx context.Context, b backend) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ctx, b)
}

func openBackend(ctx context.Context) (backend, error) {
	if addr != "" {
		return dialRemote(ctx, addr)
	}
	return buildLocal(ctx, dataDir)
}
