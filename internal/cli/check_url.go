package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var checkURLJSON bool

func init() {
	rootCmd.AddCommand(checkURLCmd)
	checkURLCmd.Flags().BoolVar(&checkURLJSON, "json", false, "Print the full decision as JSON")
}

var checkURLCmd = &cobra.Command{
	Use:   "check-url <url>",
	Short: "Evaluate an outbound URL against the gate",
	Long: "Runs one URL through the network gate and prints the verdict.\n\n" +
		"Exit code 0 if the request may be sent (allow or redirect), 1 otherwise.",
	Args: cobra.ExactArgs(1),
	RunE: runCheckURL,
}

func runCheckURL(cmd *cobra.Command, args []string) error {
	g := newGuard()
	defer g.Close()

	d := g.CheckURL(args[0])

	if checkURLJSON {
		out, _ := json.MarshalIndent(d, "", "  ")
		fmt.Println(string(out))
	} else {
		fmt.Printf("%-9s %s\n", "URL:", d.URL)
		fmt.Printf("%-9s %s\n", "Verdict:", d.Verdict)
		if d.RuleID != "" {
			fmt.Printf("%-9s %s\n", "Rule:", d.RuleID)
		}
		if d.Reason != "" {
			fmt.Printf("%-9s %s\n", "Reason:", d.Reason)
		}
		if d.RedirectURL != "" {
			fmt.Printf("%-9s %s\n", "Redirect:", d.RedirectURL)
		}
	}

	if !d.Allowed() {
		os.Exit(1)
	}
	return nil
}
