package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	installGlobal bool
	installDryRun bool
	installForce  bool
)

// guardMatcher selects the tools whose requests pathguard judges.
const guardMatcher = "Write|Edit|MultiEdit|NotebookEdit|Bash"

// guardHookCommand is the command Claude Code runs for matching tool calls.
const guardHookCommand = "pathguard check"

// HookEntry represents a single hook command (e.g., {"type": "command", "command": "..."}).
type HookEntry struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

// HookGroup represents a hook group with optional matcher and a hooks array.
// Claude Code format: {"matcher": "Write|Edit", "hooks": [{"type": "command", "command": "..."}]}
type HookGroup struct {
	Matcher string      `json:"matcher,omitempty"`
	Hooks   []HookEntry `json:"hooks"`
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Register the check hook in Claude Code settings",
	Long: `Install pathguard as a PreToolUse hook in .claude/settings.json.

This command:
  1. Reads existing settings.json (if any)
  2. Merges the pathguard hook with existing configuration
  3. Creates a backup of the original settings
  4. Writes the updated configuration

Hook groups that belong to other tools are preserved untouched.
Use --global to install into ~/.claude/settings.json instead of the
project settings. Use --force to overwrite an existing pathguard hook.`,
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
	installCmd.Flags().BoolVar(&installGlobal, "global", false, "Install into ~/.claude/settings.json")
	installCmd.Flags().BoolVar(&installDryRun, "dry-run", false, "Show what would be installed without making changes")
	installCmd.Flags().BoolVar(&installForce, "force", false, "Overwrite an existing pathguard hook")
}

func runInstall(cmd *cobra.Command, args []string) error {
	path, err := settingsPath(installGlobal)
	if err != nil {
		return fmt.Errorf("locate settings: %w", err)
	}

	rawSettings, err := loadSettings(path)
	if err != nil {
		return err
	}

	hooksMap := cloneHooksMap(rawSettings)
	if !installForce && groupContainsGuard(hooksMap, "PreToolUse") {
		fmt.Println("pathguard hook already installed. Use --force to overwrite.")
		return nil
	}

	groups := filterForeignGroups(hooksMap, "PreToolUse")
	groups = append(groups, hookGroupToMap(HookGroup{
		Matcher: guardMatcher,
		Hooks:   []HookEntry{{Type: "command", Command: guardHookCommand}},
	}))
	hooksMap["PreToolUse"] = groups
	rawSettings["hooks"] = hooksMap

	if installDryRun {
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

	fmt.Printf("✓ Installed pathguard hook to %s\n", path)
	fmt.Println()
	fmt.Printf("  PreToolUse: %s → %s\n", guardMatcher, guardHookCommand)
	fmt.Println()
	fmt.Println("Every matching tool call is now judged before it runs.")
	return nil
}

// loadSettings reads settings.json into a raw map, preserving keys
// pathguard does not manage. A missing file yields an empty map.
func loadSettings(path string) (map[string]any, error) {
	rawSettings := make(map[string]any)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return rawSettings, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, &rawSettings); err != nil {
		return nil, fmt.Errorf("parse existing settings: %w", err)
	}
	return rawSettings, nil
}

// cloneHooksMap copies the hooks section so foreign events survive merge.
func cloneHooksMap(rawSettings map[string]any) map[string]any {
	hooksMap := make(map[string]any)
	if existing, ok := rawSettings["hooks"].(map[string]any); ok {
		for k, v := range existing {
			hooksMap[k] = v
		}
	}
	return hooksMap
}

// isGuardManagedCommand reports whether a hook command belongs to
// pathguard. The match anchors on the command word itself, so hooks that
// merely mention pathguard in an argument or wrapper name stay foreign.
func isGuardManagedCommand(cmd string) bool {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return false
	}
	return filepath.Base(fields[0]) == "pathguard"
}

// rawGroupIsGuardManaged checks whether a raw hook group carries a
// pathguard command.
func rawGroupIsGuardManaged(group map[string]any) bool {
	hooks, ok := group["hooks"].([]any)
	if !ok {
		return false
	}
	for _, h := range hooks {
		hook, ok := h.(map[string]any)
		if !ok {
			continue
		}
		if cmd, ok := hook["command"].(string); ok && isGuardManagedCommand(cmd) {
			return true
		}
	}
	return false
}

// groupContainsGuard checks if any hook group in the given event contains
// a pathguard command.
func groupContainsGuard(hooksMap map[string]any, event string) bool {
	groups, ok := hooksMap[event].([]any)
	if !ok {
		return false
	}
	for _, g := range groups {
		group, ok := g.(map[string]any)
		if !ok {
			continue
		}
		if rawGroupIsGuardManaged(group) {
			return true
		}
	}
	return false
}

// filterForeignGroups returns hook groups that don't contain pathguard
// commands.
func filterForeignGroups(hooksMap map[string]any, event string) []any {
	result := make([]any, 0)
	groups, ok := hooksMap[event].([]any)
	if !ok {
		return result
	}
	for _, g := range groups {
		group, ok := g.(map[string]any)
		if !ok {
			result = append(result, g)
			continue
		}
		if !rawGroupIsGuardManaged(group) {
			result = append(result, g)
		}
	}
	return result
}

// hookGroupToMap converts a HookGroup to a map for JSON serialization.
func hookGroupToMap(g HookGroup) map[string]any {
	hooks := make([]map[string]any, len(g.Hooks))
	for i, h := range g.Hooks {
		entry := map[string]any{
			"type":    h.Type,
			"command": h.Command,
		}
		if h.Timeout > 0 {
			entry["timeout"] = h.Timeout
		}
		hooks[i] = entry
	}
	result := map[string]any{
		"hooks": hooks,
	}
	if g.Matcher != "" {
		result["matcher"] = g.Matcher
	}
	return result
}

// backupSettings copies the current settings aside before rewriting them.
func backupSettings(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	backupPath := fmt.Sprintf("%s.backup.%s", path, time.Now().Format("20060102-150405"))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	fmt.Printf("Backed up existing settings to %s\n", backupPath)
	return nil
}

// writeSettings writes the settings map, creating .claude/ as needed.
func writeSettings(path string, rawSettings map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	data, err := json.MarshalIndent(rawSettings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
