package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustgate/internal/rules"
)

var (
	ruleID        string
	ruleDomain    string
	ruleProtocol  string
	ruleAction    string
	ruleRedirect  string
	ruleRateLimit int
	ruleMaxSize   int64
	ruleReason    string
)

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rulesCmd.AddCommand(rulesRemoveCmd)
	rulesCmd.AddCommand(rulesEnableCmd)
	rulesCmd.AddCommand(rulesDisableCmd)

	rulesAddCmd.Flags().StringVar(&ruleID, "id", "", "Rule id (generated when empty)")
	rulesAddCmd.Flags().StringVar(&ruleDomain, "domain", "", "Domain pattern: exact, *.base, base.*, or * (required)")
	rulesAddCmd.Flags().StringVar(&ruleProtocol, "protocol", "", "Restrict to a scheme: http, https, ws, wss")
	rulesAddCmd.Flags().StringVar(&ruleAction, "action", "", "allow, block, redirect, or rate_limit (required)")
	rulesAddCmd.Flags().StringVar(&ruleRedirect, "redirect", "", "Target URL for the redirect action")
	rulesAddCmd.Flags().IntVar(&ruleRateLimit, "rate-limit", 0, "Requests per minute for the rate_limit action")
	rulesAddCmd.Flags().Int64Var(&ruleMaxSize, "max-size", 0, "Response size cap in bytes")
	rulesAddCmd.Flags().StringVar(&ruleReason, "reason", "", "Reason reported when the rule blocks")
	_ = rulesAddCmd.MarkFlagRequired("domain")
	_ = rulesAddCmd.MarkFlagRequired("action")
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage network rules",
	Long: "Lists and edits the network rule document. Edits are persisted and\n" +
		"picked up immediately by a serving gate through the file watcher.",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show network rules in evaluation order",
	RunE:  runRulesList,
}

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Append a network rule",
	Long: "Appends a rule to the network document. Exact domains still win over\n" +
		"wildcards regardless of position, so an added exact rule takes effect\n" +
		"even with a trailing catch-all block.",
	RunE: runRulesAdd,
}

var rulesRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a network rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesRemove,
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Re-enable a disabled network rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesEnable,
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a network rule without deleting it",
	Long:  "A disabled rule still claims its match and blocks; traffic never falls\nthrough to a broader rule.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesDisable,
}

// openStore loads the rule documents for offline edits. Absent documents
// load as the built-in defaults and are persisted on the first edit.
func openStore() (*rules.Store, error) {
	cfg, err := loadGateConfig()
	if err != nil {
		return nil, err
	}
	return rules.Open(cfg.RulePaths(), newLogger()), nil
}

func runRulesList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	list := store.NetworkRules()
	if len(list) == 0 {
		fmt.Println("No network rules. Everything is blocked.")
		return nil
	}

	fmt.Printf("%-22s %-28s %-6s %-12s %-9s %s\n", "ID", "DOMAIN", "PROTO", "ACTION", "STATE", "DETAIL")
	for _, r := range list {
		state := "enabled"
		if r.Enabled != nil && !*r.Enabled {
			state = "disabled"
		}
		fmt.Printf("%-22s %-28s %-6s %-12s %-9s %s\n",
			truncate(r.ID, 22),
			truncate(r.Domain, 28),
			r.Protocol,
			r.Action,
			state,
			ruleDetail(r),
		)
	}
	return nil
}

func ruleDetail(r rules.NetworkRule) string {
	var parts []string
	if r.RateLimit > 0 {
		parts = append(parts, fmt.Sprintf("%d/min", r.RateLimit))
	}
	if r.RedirectURL != "" {
		parts = append(parts, "-> "+r.RedirectURL)
	}
	if r.MaxSizeBytes > 0 {
		parts = append(parts, fmt.Sprintf("cap %dB", r.MaxSizeBytes))
	}
	if r.Reason != "" {
		parts = append(parts, r.Reason)
	}
	return strings.Join(parts, ", ")
}

func runRulesAdd(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	r := rules.NetworkRule{
		ID:           ruleID,
		Domain:       ruleDomain,
		Protocol:     ruleProtocol,
		Action:       ruleAction,
		RedirectURL:  ruleRedirect,
		RateLimit:    ruleRateLimit,
		MaxSizeBytes: ruleMaxSize,
		Reason:       ruleReason,
	}
	if err := store.AddNetworkRule(r); err != nil {
		return err
	}

	list := store.NetworkRules()
	added := list[len(list)-1]
	fmt.Printf("Added rule %s (%s %s)\n", added.ID, added.Action, added.Domain)
	return nil
}

func runRulesRemove(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	if err := store.RemoveNetworkRule(args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed rule %s\n", args[0])
	return nil
}

func runRulesEnable(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	if err := store.SetNetworkRuleEnabled(args[0], true); err != nil {
		return err
	}
	fmt.Printf("Enabled rule %s\n", args[0])
	return nil
}

func runRulesDisable(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	if err := store.SetNetworkRuleEnabled(args[0], false); err != nil {
		return err
	}
	fmt.Printf("Disabled rule %s\n", args[0])
	return nil
}
