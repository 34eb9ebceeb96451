package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var (
	// Global flags
	projectRoot string
	verbose     bool
	output      string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pathguard",
	Short: "Fail-closed write governance for coding agents",
	Long: `pathguard intercepts every file mutation a coding agent proposes and
decides, before it happens, whether the layered governance policy permits it.

Registered as a Claude Code PreToolUse hook, it judges file-tool writes by
resolved canonical path and shell commands by textual heuristics, and records
every decision in an append-only audit log.

Core Commands:
  check      Judge one hook request from stdin (the hook entrypoint)
  install    Register the check hook in .claude/settings.json
  uninstall  Remove the check hook
  report     Summarize policy drift from the audit log
  policy     Show the effective merged policy
  version    Show version information

Verdicts are exit codes: 0 allow, 2 block, 1 error. Block means policy says
no; error means the safety determination could not be completed.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectRoot, "root", "", "Project root (default: $CLAUDE_PROJECT_DIR, then cwd)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json, yaml)")
}

// GetOutput returns the output format for use by subcommands.
func GetOutput() string {
	return output
}

// resolveProjectRoot picks the project root the engine anchors to:
// the --root flag, then the hook runner's CLAUDE_PROJECT_DIR, then cwd.
func resolveProjectRoot() string {
	if projectRoot != "" {
		return projectRoot
	}
	if dir := strings.TrimSpace(os.Getenv("CLAUDE_PROJECT_DIR")); dir != "" {
		return dir
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// settingsPath returns the Claude settings file the installer manages:
// the project's .claude/settings.json, or the home-level one with --global.
func settingsPath(global bool) (string, error) {
	if global {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".claude", "settings.json"), nil
	}
	return filepath.Join(resolveProjectRoot(), ".claude", "settings.json"), nil
}
