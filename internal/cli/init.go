package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustgate/internal/guard"
	"github.com/ppiankov/trustgate/internal/rules"
)

var initDir string

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initDir, "dir", "", "Target directory (default ~/.trustgate)")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap trustgate configuration",
	Long: "Writes the commented default rule documents (tools.yaml, network.yaml,\n" +
		"secrets.yaml) and the gate config. Existing files are left alone, so\n" +
		"init is safe to re-run.",
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	paths, configPath, err := initPaths()
	if err != nil {
		return err
	}

	created, err := rules.WriteTemplates(paths)
	if err != nil {
		return fmt.Errorf("write rule documents: %w", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		if err := os.WriteFile(configPath, []byte(guard.DefaultConfigYAML()), 0o644); err != nil {
			return fmt.Errorf("write gate config: %w", err)
		}
		created = append(created, configPath)
	}

	fmt.Println("trustgate init complete.")
	fmt.Println()
	if len(created) > 0 {
		fmt.Println("Created:")
		for _, path := range created {
			fmt.Printf("  %s\n", path)
		}
	} else {
		fmt.Println("All files already exist.")
	}
	fmt.Println()

	fmt.Println("Try it:")
	fmt.Println("  trustgate check-url https://github.com")
	fmt.Println("  trustgate check-tool file_delete --params '{\"path\": \"/tmp/x\"}'")
	fmt.Println()
	fmt.Println("Serve the gate to an agent:")
	fmt.Println("  trustgate serve")
	return nil
}

// initPaths resolves where init writes. --dir wins, then --config, then
// the default location under the home directory.
func initPaths() (rules.Paths, string, error) {
	if initDir != "" {
		return rules.Paths{
			Tools:   filepath.Join(initDir, "tools.yaml"),
			Network: filepath.Join(initDir, "network.yaml"),
			Secrets: filepath.Join(initDir, "secrets.yaml"),
		}, filepath.Join(initDir, "config.yaml"), nil
	}

	cfg, err := loadGateConfig()
	if err != nil {
		return rules.Paths{}, "", err
	}
	configPath := cfgFile
	if configPath == "" {
		configPath = guard.DefaultConfigPath()
	}
	return cfg.RulePaths(), configPath, nil
}
