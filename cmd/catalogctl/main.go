// Command catalogctl runs catalog maintenance tasks: bulk imports, migrations and queue checks.
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

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Catalog maintenance for the Odyssey POS backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newImportCmd(),
		newStatusCmd(),
		newQueueCmd(),
		newMigrateCmd(),
		newHashTokenCmd(),
	)
	return root
}
