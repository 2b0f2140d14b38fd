package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustgate/internal/guard"
	gatemcp "github.com/ppiankov/trustgate/internal/mcp"
)

var serveSweepInterval time.Duration

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().DurationVar(&serveSweepInterval, "sweep-interval", time.Second, "How often pending approvals are mirrored and expired")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gate as an MCP server on stdio",
	Long: "Runs trustgate as a Model Context Protocol server over stdio.\n" +
		"Exposes guarded tools: check_tool, fetch, redact, approve, pending, status.\n" +
		"Rule documents are hot-reloaded while serving; pending approvals are\n" +
		"mirrored to the approval directory for the approve/deny commands.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	g := guard.New(guard.Options{ConfigPath: cfgFile, Logger: logger})
	srv := gatemcp.New(gatemcp.Config{Guard: g, Logger: logger})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := g.Watch(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "warning: rule hot-reload disabled: %v\n", err)
		}
	}()
	go g.RunSweeper(ctx, serveSweepInterval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down gate...")
		cancel()
	}()

	fmt.Fprintln(os.Stderr, "trustgate MCP server running on stdio")
	if p := g.AuditPath(); p != "" {
		fmt.Fprintf(os.Stderr, "Audit log: %s\n", p)
	}
	fmt.Fprintln(os.Stderr)

	err := srv.Run(ctx)

	// Print decision counters on exit
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Gate summary:")
	out, _ := json.MarshalIndent(g.Status(), "", "  ")
	fmt.Fprintln(os.Stderr, string(out))

	return err
}
