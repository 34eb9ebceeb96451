// Package report aggregates the audit log into a drift summary: how often
// agent sessions pushed against policy, which rules they hit, and a
// single drift score for trend tracking. It only reads the log; the core
// engine stays the sole writer.
package report

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/boshu2/pathguard/internal/audit"
)

// RuleCount pairs a rule identifier with how many times it blocked.
type RuleCount struct {
	Rule  string `json:"rule"`
	Count int    `json:"count"`
}

// Summary is the aggregated view of one audit log.
type Summary struct {
	From     time.Time `json:"from,omitempty"`
	To       time.Time `json:"to,omitempty"`
	Total    int       `json:"total"`
	Allowed  int       `json:"allowed"`
	Blocked  int       `json:"blocked"`
	Warned   int       `json:"warned"`
	Errored  int       `json:"errored"`
	Symlinks int       `json:"symlinks"`
	// ByRule counts blocks per rule, most frequent first.
	ByRule []RuleCount `json:"by_rule"`
	// DriftScore is 0..100: the blocked fraction of judged requests with
	// warns counted at half weight. 0 means sessions stay inside policy.
	DriftScore float64 `json:"drift_score"`
	// Skipped counts lines that did not parse as audit records.
	Skipped int `json:"skipped,omitempty"`
}

// Load reads and aggregates an audit log. A missing log yields an empty
// summary, not an error: no decisions yet is a valid state.
func Load(path string, since time.Duration) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Summary{}, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	cutoff := time.Time{}
	if since > 0 {
		cutoff = time.Now().UTC().Add(-since)
	}

	s := &Summary{}
	byRule := make(map[string]int)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)
	for scanner.Scan() {
		rec, ok := audit.ParseRecord(scanner.Text())
		if !ok {
			s.Skipped++
			continue
		}
		if !cutoff.IsZero() && rec.Time.Before(cutoff) {
			continue
		}
		s.observe(rec, byRule)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	for rule, count := range byRule {
		s.ByRule = append(s.ByRule, RuleCount{Rule: rule, Count: count})
	}
	sort.Slice(s.ByRule, func(i, j int) bool {
		if s.ByRule[i].Count != s.ByRule[j].Count {
			return s.ByRule[i].Count > s.ByRule[j].Count
		}
		return s.ByRule[i].Rule < s.ByRule[j].Rule
	})
	s.score()
	return s, nil
}

// observe folds one record into the summary.
func (s *Summary) observe(rec audit.Record, byRule map[string]int) {
	if s.From.IsZero() || rec.Time.Before(s.From) {
		s.From = rec.Time
	}
	if rec.Time.After(s.To) {
		s.To = rec.Time
	}

	switch rec.Level {
	case audit.LevelAllow:
		s.Allowed++
	case audit.LevelBlock:
		s.Blocked++
		byRule[blockRule(rec.Message)]++
	case audit.LevelWarn:
		s.Warned++
	case audit.LevelError:
		s.Errored++
	case audit.LevelSymlink:
		s.Symlinks++
		// Symlink hops annotate a decision; they are not one themselves.
		return
	}
	s.Total++
}

// score computes the drift score from the folded counts.
func (s *Summary) score() {
	judged := s.Allowed + s.Blocked + s.Errored
	if judged == 0 {
		return
	}
	weighted := float64(s.Blocked) + 0.5*float64(s.Warned)
	score := 100 * weighted / float64(judged)
	if score > 100 {
		score = 100
	}
	s.DriftScore = score
}

// blockRule extracts the rule identifier from a block record message,
// which the engine formats as "rule: detail".
func blockRule(message string) string {
	if i := strings.Index(message, ":"); i > 0 {
		return message[:i]
	}
	return "unknown"
}
