package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustgate/internal/audit"
)

var (
	auditEngine   string
	auditDecision string
	auditLast     int
	auditSince    time.Duration
	auditPath     string
	auditJSON     bool
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)

	auditCmd.Flags().StringVar(&auditEngine, "engine", "", "Filter by engine (tool|net|redact|approval)")
	auditCmd.Flags().StringVar(&auditDecision, "decision", "", "Filter by decision (e.g. rejected, block)")
	auditCmd.Flags().IntVarP(&auditLast, "last", "n", 20, "Number of recent entries to show (0 for all)")
	auditCmd.Flags().DurationVar(&auditSince, "since", 0, "Only entries newer than this (e.g. 24h)")
	auditCmd.Flags().StringVar(&auditPath, "path", "", "Audit log to read (default from gate config)")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Print entries as JSON")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the decision log",
	Long: "Reads the hash-chained JSONL decision log and prints matching entries\n" +
		"with a summary. Filters combine; --last applies after filtering.",
	RunE: runAuditQuery,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify hash chain integrity of the decision log",
	Long: "Walks the JSONL decision log and validates that every entry's prev_hash\n" +
		"matches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args: cobra.MaximumNArgs(1),
	RunE: runAuditVerify,
}

// resolveAuditPath honors --path, then the gate config.
func resolveAuditPath() (string, error) {
	if auditPath != "" {
		return auditPath, nil
	}
	cfg, err := loadGateConfig()
	if err != nil {
		return "", err
	}
	return cfg.AuditFile(), nil
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	path, err := resolveAuditPath()
	if err != nil {
		return err
	}

	filter := audit.Filter{
		Engine:   auditEngine,
		Decision: auditDecision,
		Last:     auditLast,
	}
	if auditSince > 0 {
		filter.Since = time.Now().UTC().Add(-auditSince)
	}

	result, err := audit.Query(path, filter)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("No audit entries yet.")
			return nil
		}
		return fmt.Errorf("query audit log: %w", err)
	}

	if auditJSON {
		out, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(audit.FormatTable(result))
	return nil
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		var err error
		path, err = resolveAuditPath()
		if err != nil {
			return err
		}
	}

	result := audit.Verify(path)
	if result.Valid {
		fmt.Printf("OK: %d entries verified\n", result.Entries)
		return nil
	}
	if result.Line > 0 {
		fmt.Fprintf(os.Stderr, "FAILED at line %d: %s\n", result.Line, result.Detail)
	} else {
		fmt.Fprintf(os.Stderr, "FAILED: %s\n", result.Detail)
	}
	os.Exit(1)
	return nil
}
