package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	uninstallGlobal bool
	uninstallDryRun bool
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the check hook from Claude Code settings",
	Long: `Remove pathguard-managed hook groups from .claude/settings.json.

Hook groups that belong to other tools are preserved untouched, and the
previous settings are backed up before writing. The audit log and policy
file are left in place.`,
	RunE: runUninstall,
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
	uninstallCmd.Flags().BoolVar(&uninstallGlobal, "global", false, "Uninstall from ~/.claude/settings.json")
	uninstallCmd.Flags().BoolVar(&uninstallDryRun, "dry-run", false, "Show what would change without writing")
}

func runUninstall(cmd *cobra.Command, args []string) error {
	path, err := settingsPath(uninstallGlobal)
	if err != nil {
		return fmt.Errorf("locate settings: %w", err)
	}

	rawSettings, err := loadSettings(path)
	if err != nil {
		return err
	}

	hooksMap := cloneHooksMap(rawSettings)
	if !groupContainsGuard(hooksMap, "PreToolUse") {
		fmt.Println("No pathguard hook found in", path)
		return nil
	}

	remaining := filterForeignGroups(hooksMap, "PreToolUse")
	if len(remaining) == 0 {
		delete(hooksMap, "PreToolUse")
	} else {
		hooksMap["PreToolUse"] = remaining
	}
	if len(hooksMap) == 0 {
		delete(rawSettings, "hooks")
	} else {
		rawSettings["hooks"] = hooksMap
	}

	if uninstallDryRun {
		fmt.Println("[dry-run] Would write to", path)
		data, err := json.MarshalIndent(rawSettings, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal settings: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if err := backupSettings(path); err != nil {
		return err
	}
	if err := writeSettings(path, rawSettings); err != nil {
		return err
	}

	fmt.Printf("✓ Removed pathguard hook from %s\n", path)
	return nil
}
