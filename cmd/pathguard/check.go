package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/boshu2/pathguard/internal/audit"
	"github.com/boshu2/pathguard/internal/engine"
	"github.com/boshu2/pathguard/internal/policy"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Judge one PreToolUse request from stdin",
	Long: `Read one PreToolUse JSON record from stdin and exit with the verdict.

This is the hook entrypoint Claude Code invokes before Write, Edit,
NotebookEdit, and Bash tool calls. The record's tool_input identifies the
target: file_path or notebook_path for file tools, command for shell.
Requests with no recognized target are allowed immediately.

Exit codes:
  0  allow  (silent)
  2  block  (explanation on stderr, fed back to the agent)
  1  error  (the safety determination could not be completed)

Verdict content is never written to stdout.`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runCheck(os.Stdin, os.Stderr))
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// runCheck evaluates one request end to end and returns the exit code.
// Split from the cobra Run so tests can drive it without exiting.
func runCheck(stdin io.Reader, stderr io.Writer) int {
	root := resolveProjectRoot()

	cfg, err := policy.Load(root)
	if err != nil {
		// The policy file exists but cannot be trusted. Audit with the
		// default log location — the configured one is unknown.
		log := audit.New(filepath.Join(root, filepath.FromSlash(policy.Default().AuditLog)))
		log.Log(audit.LevelError, "policy: "+err.Error())
		d := engine.ErrorDecision(nil, "policy", err.Error(),
			"fix or remove "+policy.File+" so the engine knows the real policy")
		printDecision(stderr, d)
		return d.ExitCode
	}

	req, err := engine.ParseRequest(stdin)
	if err != nil {
		log := audit.New(filepath.Join(root, filepath.FromSlash(cfg.AuditLog)))
		log.Log(audit.LevelError, "input: "+err.Error())
		d := engine.ErrorDecision(cfg, "input", err.Error(),
			"the hook runner must deliver one JSON record on stdin")
		printDecision(stderr, d)
		return d.ExitCode
	}

	d := engine.New(cfg, root).Evaluate(req)
	printDecision(stderr, d)
	return d.ExitCode
}

// Diagnostic colors. The color library disables itself on
// non-terminals and under NO_COLOR.
var (
	blockMark = color.New(color.FgRed, color.Bold).SprintFunc()
	errorMark = color.New(color.FgMagenta, color.Bold).SprintFunc()
	warnMark  = color.New(color.FgYellow).SprintFunc()
)

// printDecision writes the human-readable explanation to the diagnostic
// channel. Allow verdicts stay silent apart from advisory warnings;
// stdout is never used for verdict content.
func printDecision(stderr io.Writer, d engine.Decision) {
	switch d.Verdict {
	case engine.Block:
		fmt.Fprintf(stderr, "%s [%s] %s\n", blockMark("✗ BLOCK"), d.Rule, d.Message)
		if d.Remediation != "" {
			fmt.Fprintf(stderr, "  → %s\n", d.Remediation)
		}
	case engine.Error:
		fmt.Fprintf(stderr, "%s [%s] %s\n", errorMark("✗ ERROR"), d.Rule, d.Message)
		fmt.Fprintln(stderr, "  safety determination could not be completed")
		if d.Remediation != "" {
			fmt.Fprintf(stderr, "  → %s\n", d.Remediation)
		}
	case engine.Allow:
		if d.Warning != "" {
			fmt.Fprintf(stderr, "%s %s\n", warnMark("⚠"), d.Warning)
		}
	}
}
