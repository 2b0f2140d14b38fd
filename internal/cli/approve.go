package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustgate/internal/model"
	"github.com/ppiankov/trustgate/internal/rules"
	"github.com/ppiankov/trustgate/internal/toolgate"
)

var approveActor string

func init() {
	rootCmd.AddCommand(approveCmd)
	approveCmd.Flags().StringVar(&approveActor, "actor", "", "Who is approving (defaults to $USER)")
}

var approveCmd = &cobra.Command{
	Use:   "approve <request-id>",
	Short: "Approve a pending tool execution request",
	Long: "Resolves a pending request as approved by flipping its approval file.\n" +
		"The gate holding the request applies and audits the resolution on its\n" +
		"next sweep. A unique request-id prefix is enough.",
	Args: cobra.ExactArgs(1),
	RunE: runApprove,
}

func runApprove(cmd *cobra.Command, args []string) error {
	pr, err := resolveMirror(args[0], model.StatusApproved, resolverName(approveActor), "")
	if err != nil {
		return err
	}
	fmt.Printf("Approved %s (%s)\n", pr.Decision.RequestID, pr.Request.Tool)
	return nil
}

// resolverName falls back to $USER then "cli" for the resolved_by field.
func resolverName(actor string) string {
	if actor != "" {
		return actor
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

// resolveMirror flips the approval file for a pending request to status,
// leaving it for the owning gate to pick up. The write is atomic so a
// sweeping gate never reads a half-written file.
func resolveMirror(idPrefix string, status model.ApprovalStatus, actor, reason string) (*toolgate.PendingRequest, error) {
	cfg, err := loadGateConfig()
	if err != nil {
		return nil, err
	}

	path, err := findMirrorFile(cfg.MirrorDir(), idPrefix)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read approval file: %w", err)
	}
	var pr toolgate.PendingRequest
	if err := json.Unmarshal(data, &pr); err != nil {
		return nil, fmt.Errorf("malformed approval file %s: %w", path, err)
	}

	if pr.Decision.Status != model.StatusPending {
		return nil, fmt.Errorf("request %s is already %s", pr.Decision.RequestID, pr.Decision.Status)
	}
	if !pr.Decision.ExpiresAt.IsZero() && !time.Now().UTC().Before(pr.Decision.ExpiresAt) {
		return nil, fmt.Errorf("request %s expired at %s", pr.Decision.RequestID, pr.Decision.ExpiresAt.Format(time.RFC3339))
	}

	pr.Decision.Status = status
	pr.Decision.ResolvedBy = actor
	if reason != "" {
		pr.Decision.Reason = reason
	}

	out, err := json.MarshalIndent(pr, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := rules.WriteFileAtomic(path, out, 0o644); err != nil {
		return nil, fmt.Errorf("write approval file: %w", err)
	}
	return &pr, nil
}

// findMirrorFile locates the approval file for an id, accepting a unique
// prefix.
func findMirrorFile(dir, idPrefix string) (string, error) {
	exact := filepath.Join(dir, idPrefix+".json")
	if _, err := os.Stat(exact); err == nil {
		return exact, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no pending request %q", idPrefix)
		}
		return "", fmt.Errorf("read approval directory: %w", err)
	}

	var matches []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if strings.HasPrefix(name, idPrefix) {
			matches = append(matches, filepath.Join(dir, name))
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no pending request %q", idPrefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q matches %d pending requests, use more of the id", idPrefix, len(matches))
	}
}
