package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookwatch/internal/memory"
	"github.com/ppiankov/hookwatch/internal/session"
)

var (
	memoryPath  string
	memoryTags  string
	memoryLimit int
)

func init() {
	rootCmd.AddCommand(memoryCmd)
	memoryCmd.PersistentFlags().StringVar(&memoryPath, "db", "", "Memory store path (default <state-dir>/memory.db)")

	memoryWriteCmd.Flags().StringVar(&memoryTags, "tags", "", "Comma-separated tags")
	memorySearchCmd.Flags().IntVar(&memoryLimit, "limit", 0, "Maximum results")
	memoryListCmd.Flags().IntVar(&memoryLimit, "limit", 0, "Maximum results")

	memoryCmd.AddCommand(memoryWriteCmd, memoryReadCmd, memorySearchCmd,
		memoryListCmd, memoryDeleteCmd, memoryPruneCmd)
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage durable session notes",
}

func openMemory() (*memory.Store, error) {
	path := memoryPath
	if path == "" {
		path = memory.DefaultPath(session.DefaultStateDir())
	}
	return memory.Open(path)
}

func printJSON(cmd *cobra.Command, v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
}

var memoryWriteCmd = &cobra.Command{
	Use:   "write <key> <value>",
	Short: "Store a note",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openMemory()
		if err != nil {
			return err
		}
		defer store.Close()
		entry, err := store.Write(cmd.Context(), args[0], args[1], memoryTags)
		if err != nil {
			return err
		}
		printJSON(cmd, entry)
		return nil
	},
}

var memoryReadCmd = &cobra.Command{
	Use:   "read <key>",
	Short: "Read a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openMemory()
		if err != nil {
			return err
		}
		defer store.Close()
		entry, err := store.Read(cmd.Context(), args[0])
		if errors.Is(err, memory.ErrNotFound) {
			return fmt.Errorf("no entry for key %q", args[0])
		}
		if err != nil {
			return err
		}
		printJSON(cmd, entry)
		return nil
	},
}

var memorySearchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search notes by substring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openMemory()
		if err != nil {
			return err
		}
		defer store.Close()
		entries, err := store.Search(cmd.Context(), args[0], memoryLimit)
		if err != nil {
			return err
		}
		printJSON(cmd, entries)
		return nil
	},
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openMemory()
		if err != nil {
			return err
		}
		defer store.Close()
		entries, err := store.List(cmd.Context(), memoryLimit)
		if err != nil {
			return err
		}
		printJSON(cmd, entries)
		return nil
	},
}

var memoryDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openMemory()
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Delete(cmd.Context(), args[0]); err != nil {
			if errors.Is(err, memory.ErrNotFound) {
				return fmt.Errorf("no entry for key %q", args[0])
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

var memoryPruneCmd = &cobra.Command{
	Use:   "prune <older-than>",
	Short: "Delete notes older than a duration (e.g. 720h)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		age, err := time.ParseDuration(args[0])
		if err != nil || age <= 0 {
			return fmt.Errorf("invalid duration %q", args[0])
		}
		store, err := openMemory()
		if err != nil {
			return err
		}
		defer store.Close()
		n, err := store.Prune(cmd.Context(), age)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned %d entries\n", n)
		return nil
	},
}
