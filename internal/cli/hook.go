package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookwatch/internal/hook"
	"github.com/ppiankov/hookwatch/internal/rules"
	"github.com/ppiankov/hookwatch/internal/session"
)

var (
	hookStateDir string
	hookRules    string
)

func init() {
	rootCmd.AddCommand(hookCmd)
	hookCmd.Flags().StringVar(&hookStateDir, "state-dir", "", "State directory (default ~/.hookwatch)")
	hookCmd.Flags().StringVar(&hookRules, "rules", "", "Path to rules YAML overlay")
}

var hookCmd = &cobra.Command{
	Use:   "hook <event>",
	Short: "Run a hook check for the host tool",
	Long:  "Reads the hook payload from stdin, runs the event's check, and prints\nthe decision as JSON. Always exits 0: a broken check must never break\nthe host tool.",
	Args:  cobra.ExactArgs(1),
	RunE:  runHook,
}

func runHook(cmd *cobra.Command, args []string) error {
	decision := runHookCheck(args[0], os.Stdin)
	out, _ := json.Marshal(decision)
	fmt.Println(string(out))
	return nil
}

// runHookCheck isolates the fallible part. Any failure approves: the
// check is advisory and the host tool must keep working.
func runHookCheck(eventArg string, stdin *os.File) hook.Decision {
	event, err := hook.ParseEvent(eventArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hookwatch: %v\n", err)
		return hook.Approve()
	}

	payload := hook.ParsePayload(stdin)
	reg := session.NewRegistry(hookStateDir, payload.SessionID)

	var opts []hook.Option
	if hookRules != "" {
		engine, err := rules.Load(hookRules)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hookwatch: load rules: %v\n", err)
		} else {
			opts = append(opts, hook.WithEngine(engine))
		}
	}

	return hook.NewClient(reg, opts...).Check(event, payload)
}
