package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(redactCmd)
}

var redactCmd = &cobra.Command{
	Use:   "redact [text]",
	Short: "Mask secrets in text before it leaves the boundary",
	Long: "Scans text for credential patterns and prints the redacted form on\n" +
		"stdout. Reads stdin when no argument is given, so it can sit in a\n" +
		"pipeline:\n\n" +
		"  some-agent --dump | trustgate redact > safe.txt",
	Args: cobra.ArbitraryArgs,
	RunE: runRedact,
}

func runRedact(cmd *cobra.Command, args []string) error {
	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}

	g := newGuard()
	defer g.Close()

	res := g.Redact(text)
	fmt.Print(res.Redacted)
	if len(args) > 0 {
		fmt.Println()
	}

	if res.Count > 0 {
		types := make([]string, 0, len(res.Secrets))
		seen := make(map[string]bool)
		for _, s := range res.Secrets {
			if !seen[s.Type] {
				seen[s.Type] = true
				types = append(types, s.Type)
			}
		}
		fmt.Fprintf(os.Stderr, "redacted %d secret(s): %s\n", res.Count, strings.Join(types, ", "))
	}
	return nil
}
