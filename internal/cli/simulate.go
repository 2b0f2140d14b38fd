package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustgate/internal/sim"
)

var (
	simLog    string
	simRules  string
	simFormat string
)

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simLog, "log", "", "Path to audit log (defaults to the configured audit path)")
	simulateCmd.Flags().StringVar(&simRules, "rules", "", "Directory with candidate rule documents (required)")
	simulateCmd.Flags().StringVarP(&simFormat, "format", "f", "text", "Output format (text|json)")
	simulateCmd.MarkFlagRequired("rules")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay the audit log against candidate rules and show verdict diffs",
	Long: "Reads recorded network decisions from the audit log, re-evaluates each URL\n" +
		"against an alternate rule directory, and shows which verdicts changed.\n\n" +
		"Use this to preview rule changes before deploying them.",
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	logPath := simLog
	if logPath == "" {
		cfg, err := loadGateConfig()
		if err != nil {
			return err
		}
		logPath = cfg.AuditFile()
	}

	result, err := sim.Simulate(logPath, simRules)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("No audit entries yet.")
			return nil
		}
		return err
	}

	return emit(simFormat,
		func() (string, error) { return sim.FormatJSON(result) },
		func() string { return sim.FormatText(result) })
}
