package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustgate/internal/model"
)

var (
	denyActor  string
	denyReason string
)

func init() {
	rootCmd.AddCommand(denyCmd)
	denyCmd.Flags().StringVar(&denyActor, "actor", "", "Who is denying (defaults to $USER)")
	denyCmd.Flags().StringVar(&denyReason, "reason", "", "Why the request is denied")
}

var denyCmd = &cobra.Command{
	Use:   "deny <request-id>",
	Short: "Deny a pending tool execution request",
	Long: "Resolves a pending request as rejected. The agent stays blocked for\n" +
		"this request; it has to submit a new one.",
	Args: cobra.ExactArgs(1),
	RunE: runDeny,
}

func runDeny(cmd *cobra.Command, args []string) error {
	reason := denyReason
	if reason == "" {
		reason = "denied by operator"
	}
	pr, err := resolveMirror(args[0], model.StatusRejected, resolverName(denyActor), reason)
	if err != nil {
		return err
	}
	fmt.Printf("Denied %s (%s)\n", pr.Decision.RequestID, pr.Request.Tool)
	return nil
}
