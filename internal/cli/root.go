// Package cli wires the hookwatch commands. Hook handlers shell out to
// `hookwatch hook <event>`; everything else is for humans and the MCP
// host.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hookwatch",
	Short: "Session watcher and hook gate for coding agents",
	Long:  "Watches agent transcripts for unfinished work and dangerous commands.\nHook handlers report events over a local socket; a per-session watcher\naccumulates findings and surfaces them when the response completes.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
