// Command tubedigest runs the agents of the YouTube digest pipeline: the
// finder, the orchestrator, a development tool server and a caller CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "tubedigest",
		Short:         "Find, summarize and combine YouTube videos with two cooperating agents",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "tubedigest.yaml", "YAML config file")

	root.AddCommand(
		finderCmd(&cfgPath),
		orchestratorCmd(&cfgPath),
		askCmd(&cfgPath),
		devtoolsCmd(&cfgPath),
		watchCmd(&cfgPath),
	)
	return root
}
