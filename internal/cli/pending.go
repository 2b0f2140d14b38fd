package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustgate/internal/model"
	"github.com/ppiankov/trustgate/internal/toolgate"
)

func init() {
	rootCmd.AddCommand(pendingCmd)
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List tool execution requests awaiting approval",
	Long: "Shows every request mirrored to the approval directory that is still\n" +
		"pending, oldest first. Resolve one with 'trustgate approve' or\n" +
		"'trustgate deny'.",
	RunE: runPending,
}

func runPending(cmd *cobra.Command, args []string) error {
	cfg, err := loadGateConfig()
	if err != nil {
		return err
	}

	list, err := readMirror(cfg.MirrorDir())
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println("No pending approvals.")
		return nil
	}

	now := time.Now().UTC()
	fmt.Printf("%-38s %-20s %-32s %s\n", "REQUEST", "TOOL", "REASON", "EXPIRES")
	for _, pr := range list {
		expires := pr.Decision.ExpiresAt.Local().Format("15:04:05")
		if !now.Before(pr.Decision.ExpiresAt) {
			expires = "expired"
		}
		fmt.Printf("%-38s %-20s %-32s %s\n",
			pr.Decision.RequestID,
			truncate(pr.Request.Tool, 20),
			truncate(pr.Decision.Reason, 32),
			expires,
		)
	}
	return nil
}

// readMirror loads still-pending approval files, oldest first. Resolved
// files waiting to be swept and unparsable leftovers are skipped.
func readMirror(dir string) ([]toolgate.PendingRequest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read approval directory: %w", err)
	}

	var out []toolgate.PendingRequest
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var pr toolgate.PendingRequest
		if err := json.Unmarshal(data, &pr); err != nil {
			continue
		}
		if pr.Decision.Status != model.StatusPending {
			continue
		}
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Decision.CreatedAt.Before(out[j].Decision.CreatedAt)
	})
	return out, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
