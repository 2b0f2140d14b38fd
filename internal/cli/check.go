package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustgate/internal/scenario"
)

var (
	checkScenario string
	checkFormat   string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkScenario, "scenario", "", "Glob pattern for scenario YAML files (required)")
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
	_ = checkCmd.MarkFlagRequired("scenario")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run rule assertions from scenario files",
	Long: "Loads scenario YAML files matching a glob pattern, evaluates each\n" +
		"case through the tool and network gates, and reports pass/fail.\n\n" +
		"Exit code 0 if all cases pass, 1 if any fail.\n" +
		"Use in CI to gate rule changes on expected decisions.",
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	paths, err := filepath.Glob(checkScenario)
	if err != nil {
		return fmt.Errorf("bad scenario glob: %w", err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no scenario files match %s", checkScenario)
	}
	cfg, err := loadGateConfig()
	if err != nil {
		return err
	}

	results := make([]*scenario.RunResult, 0, len(paths))
	failed := 0
	for _, path := range paths {
		r, err := scenario.LoadAndRun(path, cfg.RulePaths())
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		results = append(results, r)
		failed += r.Failed
	}

	err = emit(checkFormat,
		func() (string, error) { return scenario.FormatJSON(results) },
		func() string { return scenario.FormatText(results) })
	if err != nil {
		return err
	}

	if failed > 0 {
		os.Exit(1)
	}
	return nil
}
