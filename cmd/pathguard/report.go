package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/boshu2/pathguard/internal/policy"
	"github.com/boshu2/pathguard/internal/report"
)

var reportSince string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize policy drift from the audit log",
	Long: `Aggregate the audit log into a drift report.

Shows how many proposed writes were allowed, blocked, and warned, which
rules fired most, and a 0-100 drift score for trend tracking across
sessions. The report only reads the log; it never modifies it.

Examples:
  pathguard report
  pathguard report --since 7d
  pathguard report -o json`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportSince, "since", "", "Time window (e.g. 24h, 7d, 30d; default: whole log)")
}

func runReport(cmd *cobra.Command, args []string) error {
	root := resolveProjectRoot()

	cfg, err := policy.Load(root)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}

	var window time.Duration
	if reportSince != "" {
		window, err = parseWindow(reportSince)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
	}

	logPath := filepath.Join(root, filepath.FromSlash(cfg.AuditLog))
	summary, err := report.Load(logPath, window)
	if err != nil {
		return err
	}

	if GetOutput() == "json" {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printReport(logPath, summary)
	return nil
}

// parseWindow parses durations like 24h plus the day shorthand 7d.
func parseWindow(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days < 1 {
			return 0, fmt.Errorf("expected a positive day count, got %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// printReport renders the table format.
func printReport(logPath string, s *report.Summary) {
	fmt.Println("pathguard drift report")
	fmt.Println("======================")
	fmt.Println()
	fmt.Printf("Audit log: %s\n", logPath)
	if s.Total == 0 {
		fmt.Println()
		fmt.Println("No decisions recorded yet.")
		return
	}
	if !s.From.IsZero() {
		fmt.Printf("Window:    %s .. %s\n", s.From.Format(time.RFC3339), s.To.Format(time.RFC3339))
	}
	fmt.Println()
	fmt.Printf("  Decisions: %d\n", s.Total)
	fmt.Printf("  ✓ allowed: %d\n", s.Allowed)
	fmt.Printf("  ✗ blocked: %d\n", s.Blocked)
	fmt.Printf("  ⚠ warned:  %d\n", s.Warned)
	if s.Errored > 0 {
		fmt.Printf("  ! errored: %d\n", s.Errored)
	}
	if s.Symlinks > 0 {
		fmt.Printf("  symlink hops: %d\n", s.Symlinks)
	}
	if s.Skipped > 0 {
		fmt.Printf("  unparsed lines: %d\n", s.Skipped)
	}

	if len(s.ByRule) > 0 {
		fmt.Println()
		fmt.Println("Blocks by rule:")
		for _, rc := range s.ByRule {
			fmt.Printf("  %-24s %d\n", rc.Rule, rc.Count)
		}
	}

	fmt.Println()
	fmt.Printf("Drift score: %s\n", driftLabel(s.DriftScore))
}

// driftLabel colors the drift score by severity.
func driftLabel(score float64) string {
	text := fmt.Sprintf("%.1f / 100", score)
	switch {
	case score >= 25:
		return color.New(color.FgRed, color.Bold).Sprint(text)
	case score >= 10:
		return color.New(color.FgYellow).Sprint(text)
	default:
		return color.New(color.FgGreen).Sprint(text)
	}
}
