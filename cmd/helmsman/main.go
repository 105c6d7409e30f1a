// Command helmsman runs a cluster controller and inspects its configuration.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "helmsman",
		Short: "Helmsman - cluster controller for partitioned, replicated resources",
		Long: `Helmsman reads a cluster's ideal states, state models, constraints and
live participants from a coordination store and keeps the computed
resource assignments and external views up to date.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(fmt.Sprintf(
		"Helmsman version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newStateModelsCmd())

	return root
}
