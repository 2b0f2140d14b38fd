package cli

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/trustgate/internal/policydiff"
	"github.com/ppiankov/trustgate/internal/rules"
)

var diffFormat string

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringVarP(&diffFormat, "format", "f", "text", "Output format (text|json)")
}

var diffCmd = &cobra.Command{
	Use:   "diff <old-dir> <new-dir>",
	Short: "Compare two rule directories and show changes",
	Long: "Loads the rule documents from two directories and shows what changed:\n" +
		"tool policies, network rules, and secret patterns added, removed, or\n" +
		"modified. A missing document loads as the built-in defaults, so diffing\n" +
		"against an empty directory shows the drift from stock rules.",
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
	oldDocs := policydiff.Load(rules.PathsIn(args[0]))
	newDocs := policydiff.Load(rules.PathsIn(args[1]))

	result := policydiff.Diff(oldDocs, newDocs)
	result.OldDir = args[0]
	result.NewDir = args[1]

	return emit(diffFormat,
		func() (string, error) { return policydiff.FormatJSON(result) },
		func() string { return policydiff.FormatText(result) })
}
