package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "stratus-admin: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stratus-admin",
		Short: "Stratus storage maintenance CLI",
		Long: `stratus-admin runs the out-of-band maintenance tools of the cascade engine:
the retroactive removal sweep over all accounts, the one-off duplicate-folder
cleanup, an on-demand reconciliation run, and folder size/stats queries.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newSweepCmd(),
		newDedupeCmd(),
		newReconcileCmd(),
		newSizeCmd(),
		newStatsCmd(),
	)
	return cmd
}
