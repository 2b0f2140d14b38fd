package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gate counters and rule inventory",
	Long: "Assembles the gate from the configured rule documents and prints its\n" +
		"status as JSON: decision counters, rule counts, pending approvals, and\n" +
		"where the audit log lives.",
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	g := newGuard()
	defer g.Close()

	// Pick up requests mirrored by other processes so the pending count
	// reflects the approval directory, not just this process.
	g.SweepApprovals()

	out, err := json.MarshalIndent(g.Status(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
