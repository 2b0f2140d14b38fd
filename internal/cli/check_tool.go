package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustgate/internal/model"
)

var (
	checkToolParams string
	checkToolActor  string
	checkToolJSON   bool
)

func init() {
	rootCmd.AddCommand(checkToolCmd)
	checkToolCmd.Flags().StringVar(&checkToolParams, "params", "", "Tool parameters as a JSON object")
	checkToolCmd.Flags().StringVar(&checkToolActor, "actor", "", "Requesting agent identity")
	checkToolCmd.Flags().BoolVar(&checkToolJSON, "json", false, "Print the full decision as JSON")
}

var checkToolCmd = &cobra.Command{
	Use:   "check-tool <tool>",
	Short: "Evaluate one tool call against the gate",
	Long: "Runs a single tool call through the gate and prints the decision.\n" +
		"A pending decision is mirrored to the approval directory so it can be\n" +
		"resolved later with 'trustgate approve'.\n\n" +
		"Exit code 0 if the call may proceed now, 1 otherwise.",
	Args: cobra.ExactArgs(1),
	RunE: runCheckTool,
}

func runCheckTool(cmd *cobra.Command, args []string) error {
	var params map[string]any
	if checkToolParams != "" {
		if err := json.Unmarshal([]byte(checkToolParams), &params); err != nil {
			return fmt.Errorf("invalid --params JSON: %w", err)
		}
	}

	g := newGuard()
	defer g.Close()

	req := model.NewExecutionRequest(args[0], params)
	req.Actor = checkToolActor
	d := g.CheckTool(req)
	if d.Status == model.StatusPending {
		// Flush the mirror so approve/deny can find the request.
		g.SweepApprovals()
	}

	if checkToolJSON {
		out, _ := json.MarshalIndent(d, "", "  ")
		fmt.Println(string(out))
	} else {
		fmt.Printf("%-8s %s\n", "Tool:", d.Tool)
		fmt.Printf("%-8s %s\n", "Status:", d.Status)
		if d.Reason != "" {
			fmt.Printf("%-8s %s\n", "Reason:", d.Reason)
		}
		if d.Status == model.StatusPending {
			fmt.Printf("%-8s %s\n", "Expires:", d.ExpiresAt.Format(time.RFC3339))
			fmt.Printf("\nApprove with: trustgate approve %s\n", d.RequestID)
		}
	}

	if !d.Allowed() {
		os.Exit(1)
	}
	return nil
}
