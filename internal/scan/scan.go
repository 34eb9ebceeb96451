// Package scan is the command-string heuristic arm of pathguard. Where the
// structural rules judge a resolved path with full confidence, this
// scanner judges a raw shell command line with none of that rigor: it
// pattern-matches surface text and has no notion of variable expansion,
// quoting, encoding, or indirection.
//
// It is a probabilistic deterrent, not a completeness guarantee. False
// negatives are expected and documented; the scanner exists to catch the
// unsophisticated majority of write-around attempts, not to parse shell.
package scan

import (
	"strings"

	"github.com/boshu2/pathguard/internal/policy"
	"github.com/boshu2/pathguard/internal/rules"
)

// Rule identifiers for scanner findings.
const (
	RuleCommandWrite = "command-write-protected"
	RuleGuardTamper  = "guard-tamper"
	RuleVerifyBypass = "verify-bypass"
)

// Finding is a scanner rule that fired. Findings always block.
type Finding struct {
	Rule        string
	Message     string
	Remediation string
}

// writeUtilities are command names that mutate files when they appear as a
// token anywhere in the command line (pipelines and && chains included).
var writeUtilities = map[string]struct{}{
	"mv": {}, "cp": {}, "rm": {}, "tee": {},
	"chmod": {}, "chown": {}, "truncate": {}, "dd": {}, "install": {},
}

// editors are programs whose invocation against a guard surface counts as
// a tampering attempt regardless of write tokens.
var editors = map[string]struct{}{
	"vi": {}, "vim": {}, "nvim": {}, "nano": {}, "emacs": {}, "code": {}, "sed": {},
}

// guardSurfaces are textual names of pathguard's own scripts and
// configuration. Any editor or write utility aimed at them blocks
// unconditionally.
var guardSurfaces = []string{
	".claude/hooks",
	".claude/settings.json",
	".claude/settings.local.json",
	".agents/pathguard",
}

// Scanner inspects raw command strings for write-like operations against
// protected locations.
type Scanner struct {
	cfg       *policy.Config
	stems     []string
	forbidden []string
}

// New builds a Scanner from the loaded policy. Protected-pattern literal
// stems come from both tiers, so the scanner's textual net covers the same
// locations the structural rules guard.
func New(cfg *policy.Config) *Scanner {
	s := &Scanner{cfg: cfg}
	for _, raw := range append(rules.SelfProtectedPatterns(), cfg.ProtectedPaths...) {
		p, err := policy.CompilePattern(raw)
		if err != nil {
			continue
		}
		if stem := p.LiteralStem(); stem != "" {
			s.stems = append(s.stems, stem)
		}
	}
	for _, name := range cfg.ForbiddenDirs {
		s.forbidden = append(s.forbidden, strings.ToLower(name))
	}
	return s
}

// Scan inspects one command line and returns the first finding, or nil.
func (s *Scanner) Scan(command string) *Finding {
	tokens := strings.Fields(command)
	if len(tokens) == 0 {
		return nil
	}

	if f := s.guardTamper(command, tokens); f != nil {
		return f
	}
	if f := verifyBypass(tokens); f != nil {
		return f
	}
	return s.writeToProtected(command, tokens)
}

// guardTamper blocks editors and modification verbs aimed at pathguard's
// own surfaces by name.
func (s *Scanner) guardTamper(command string, tokens []string) *Finding {
	surface := ""
	for _, g := range guardSurfaces {
		if strings.Contains(command, g) {
			surface = g
			break
		}
	}
	if surface == "" {
		return nil
	}
	for _, tok := range tokens {
		base := baseCommand(tok)
		_, isEditor := editors[base]
		_, isWriter := writeUtilities[base]
		if isEditor || isWriter {
			return &Finding{
				Rule:        RuleGuardTamper,
				Message:     "command invokes " + base + " against " + surface,
				Remediation: "pathguard's own files are off limits to agent sessions; edit them manually",
			}
		}
	}
	if hasRedirection(tokens) {
		return &Finding{
			Rule:        RuleGuardTamper,
			Message:     "command redirects output toward " + surface,
			Remediation: "pathguard's own files are off limits to agent sessions; edit them manually",
		}
	}
	return nil
}

// verifyBypass blocks `git commit` invocations that skip verification
// hooks, regardless of target. -n is git commit's short form of
// --no-verify.
func verifyBypass(tokens []string) *Finding {
	sawGit, sawCommit := false, false
	for _, tok := range tokens {
		switch {
		case baseCommand(tok) == "git":
			sawGit = true
		case sawGit && tok == "commit":
			sawCommit = true
		case sawCommit && (tok == "--no-verify" || tok == "-n"):
			return &Finding{
				Rule:        RuleVerifyBypass,
				Message:     "git commit with --no-verify skips verification hooks",
				Remediation: "commit without --no-verify and let the hooks run",
			}
		}
	}
	return nil
}

// writeToProtected blocks when a write-like token co-occurs with a textual
// reference to a protected location or forbidden directory name.
func (s *Scanner) writeToProtected(command string, tokens []string) *Finding {
	if !hasWriteToken(tokens) {
		return nil
	}

	for _, stem := range s.stems {
		if strings.Contains(command, stem) {
			return &Finding{
				Rule:        RuleCommandWrite,
				Message:     "write-like command references protected location " + stem,
				Remediation: "use the file tools for edits so the full path rules can judge the target",
			}
		}
	}

	lower := strings.ToLower(command)
	for _, name := range s.forbidden {
		if referencesSegment(lower, name) {
			return &Finding{
				Rule:        RuleCommandWrite,
				Message:     "write-like command references forbidden directory name " + name,
				Remediation: "use a purposeful directory name; scratch locations do not belong in the repository",
			}
		}
	}
	return nil
}

// hasWriteToken reports whether any token looks like a file-mutating
// operation: output redirection, stream duplication, a write utility, or
// in-place sed.
func hasWriteToken(tokens []string) bool {
	if hasRedirection(tokens) {
		return true
	}
	for i, tok := range tokens {
		base := baseCommand(tok)
		if _, ok := writeUtilities[base]; ok {
			return true
		}
		if base == "sed" && i+1 < len(tokens) && strings.HasPrefix(tokens[i+1], "-i") {
			return true
		}
	}
	return false
}

// hasRedirection reports output redirection or stream duplication tokens.
func hasRedirection(tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(tok, ">") {
			return true
		}
	}
	return false
}

// baseCommand strips any leading path from a token so /usr/bin/rm and rm
// match the same rule.
func baseCommand(tok string) string {
	if i := strings.LastIndexByte(tok, '/'); i >= 0 {
		return tok[i+1:]
	}
	return tok
}

// referencesSegment reports whether a lowercase command references name as
// a path segment or bare word.
func referencesSegment(lower, name string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], name)
		if i < 0 {
			return false
		}
		i += idx
		beforeOK := i == 0 || boundaryByte(lower[i-1])
		after := i + len(name)
		afterOK := after == len(lower) || boundaryByte(lower[after])
		if beforeOK && afterOK {
			return true
		}
		idx = i + 1
	}
}

// boundaryByte reports bytes that delimit a path segment in command text.
func boundaryByte(c byte) bool {
	switch c {
	case '/', ' ', '\t', '"', '\'', '=', ':', ';', '&', '|', '(', ')':
		return true
	}
	return false
}
