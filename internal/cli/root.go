package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/trustgate/internal/guard"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "trustgate",
	Short: "Trust boundary for autonomous agents",
	Long: "Checks tool calls, outbound URLs, and text leaving the boundary against\n" +
		"operator-owned rules. Deny by default; every decision lands in a\n" +
		"hash-chained audit log.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to gate config YAML (default ~/.trustgate/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the CLI logger: a development logger with --verbose,
// otherwise a production logger. Engines log decisions at debug level, so
// one-shot commands stay quiet without the flag.
func newLogger() *zap.Logger {
	var logger *zap.Logger
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// newGuard assembles a guard from the configured gate config path. Missing
// rule documents are synthesized with the built-in defaults.
func newGuard() *guard.Guard {
	return guard.New(guard.Options{ConfigPath: cfgFile, Logger: newLogger()})
}

// loadGateConfig resolves the gate config for commands that only need
// paths out of it, without assembling the engines.
func loadGateConfig() (*guard.Config, error) {
	return guard.LoadConfig(cfgFile)
}

// emit prints a command result in the requested format. Commands that take
// a --format flag route their output through here.
func emit(format string, asJSON func() (string, error), asText func() string) error {
	if format == "json" {
		out, err := asJSON()
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(asText())
	return nil
}
