package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookwatch/internal/rules"
)

var classifyRules string

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().StringVar(&classifyRules, "rules", "", "Path to rules YAML overlay")
}

var classifyCmd = &cobra.Command{
	Use:   "classify [text]",
	Short: "Classify text against the rule tables",
	Long:  "Runs the rule engine over the given text (or stdin when no argument)\nand prints the detected issues as JSON.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	var text string
	if len(args) == 1 {
		text = args[0]
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}

	engine, err := rules.Load(classifyRules)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	issues := engine.Classify(strings.TrimSpace(text))
	if issues == nil {
		issues = []rules.Issue{}
	}
	out, _ := json.MarshalIndent(map[string]any{
		"has_issues": len(issues) > 0,
		"issues":     issues,
	}, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
