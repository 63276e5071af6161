package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	hookmcp "github.com/ppiankov/hookwatch/internal/mcp"
	"github.com/ppiankov/hookwatch/internal/session"
)

var (
	mcpMemoryPath string
	mcpRules      string
)

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpMemoryPath, "db", "", "Memory store path (default <state-dir>/memory.db)")
	mcpCmd.Flags().StringVar(&mcpRules, "rules", "", "Path to rules YAML overlay")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long:  "Runs hookwatch as an MCP (Model Context Protocol) server over stdio.\nExposes the memory store and the rule engine as tools.",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	srv, err := hookmcp.New(hookmcp.Config{
		MemoryPath: mcpMemoryPath,
		RulesPath:  mcpRules,
		StateDir:   session.DefaultStateDir(),
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	return srv.Run(ctx)
}
