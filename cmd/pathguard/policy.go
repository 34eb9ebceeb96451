package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/boshu2/pathguard/embedded"
	"github.com/boshu2/pathguard/internal/policy"
)

var policyInit bool

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Show the effective merged policy",
	Long: `Display the policy the check command will enforce.

The effective policy is the optional project policy file
(` + policy.File + `) overlaid field-by-field onto compiled-in defaults.
The file is declarative data only; it can describe rule parameters but
never carry executable logic.

Examples:
  pathguard policy           # YAML, the policy file format
  pathguard policy -o json   # JSON
  pathguard policy --init    # write a starter policy file`,
	RunE: runPolicy,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.Flags().BoolVar(&policyInit, "init", false, "Write a commented starter policy file")
}

func runPolicy(cmd *cobra.Command, args []string) error {
	root := resolveProjectRoot()

	if policyInit {
		return initPolicy(root)
	}

	cfg, err := policy.Load(root)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}

	if GetOutput() == "json" {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal policy: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	file := filepath.Join(root, filepath.FromSlash(policy.File))
	if _, err := os.Stat(file); err == nil {
		fmt.Printf("# effective policy (defaults + %s)\n", policy.File)
	} else {
		fmt.Println("# effective policy (compiled-in defaults; no policy file present)")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

// initPolicy writes the embedded starter policy, refusing to clobber an
// existing one.
func initPolicy(root string) error {
	path := filepath.Join(root, filepath.FromSlash(policy.File))
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists; edit it directly", policy.File)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create policy directory: %w", err)
	}
	if err := os.WriteFile(path, embedded.StarterPolicy, 0o644); err != nil {
		return fmt.Errorf("write starter policy: %w", err)
	}
	fmt.Printf("✓ Wrote %s\n", policy.File)
	fmt.Println("  Edit it, then run `pathguard policy` to see the effective result.")
	return nil
}
