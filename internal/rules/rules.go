// Package rules evaluates structural placement rules against a resolved
// target path. Rules run in a fixed order and the first match wins.
//
// Two tiers of protected-path rules exist on purpose. The self-protection
// tier is compiled in and always evaluated first, so an emptied or
// tampered policy file can never expose pathguard's own configuration,
// hook scripts, or audit trail. The policy tier follows and is fully
// owner-configurable. The overlap between them is intentional fail-safe
// redundancy, not duplication to be cleaned up.
package rules

import (
	"fmt"
	"path"
	"strings"

	"github.com/boshu2/pathguard/internal/policy"
	"github.com/boshu2/pathguard/internal/resolve"
)

// Rule identifiers, used in diagnostics and audit records.
const (
	RuleSelfProtection = "self-protection"
	RuleProtectedPath  = "protected-path"
	RuleRootLockdown   = "root-lockdown"
	RuleDepthLimit     = "depth-limit"
	RuleForbiddenDir   = "forbidden-dir"
	RuleDirectiveSize  = "directive-size"
	RuleSourceSize     = "source-size"
)

// directiveSuffix is the naming convention for governance directive
// documents, which carry a stricter size ceiling than ordinary sources.
const directiveSuffix = "-directive.md"

// Violation is a rule that fired. It always blocks.
type Violation struct {
	Rule        string
	Message     string
	Remediation string
}

// Warning is an advisory finding. It never blocks; the engine attaches a
// WARN audit record and a diagnostic to an Allow verdict.
type Warning struct {
	Rule    string
	Message string
}

// selfProtected is the compiled-in protection tier: pathguard's own
// configuration and audit trail, the host settings file, and the hook
// scripts directory. Each entry carries the rationale shown in the block
// message.
var selfProtected = []struct {
	pattern   string
	rationale string
}{
	{".agents/pathguard/*", "pathguard policy and audit trail"},
	{".claude/settings.json", "Claude Code settings (hook registration lives here)"},
	{".claude/settings.local.json", "Claude Code local settings"},
	{".claude/hooks/*", "hook scripts"},
}

// Engine evaluates the structural rule chain for one invocation.
type Engine struct {
	cfg *policy.Config

	selfTier   []tierRule
	policyTier []tierRule
	forbidden  map[string]struct{}
	sourceExts map[string]struct{}
}

// tierRule is a compiled protected-path rule with its block rationale.
type tierRule struct {
	pattern   *policy.Pattern
	rationale string
}

// New compiles the rule chain from the loaded policy. Self-protection
// patterns are compiled from constants and cannot fail; a policy pattern
// that fails to compile was already rejected by policy validation.
func New(cfg *policy.Config) *Engine {
	e := &Engine{
		cfg:        cfg,
		forbidden:  make(map[string]struct{}, len(cfg.ForbiddenDirs)),
		sourceExts: make(map[string]struct{}, len(cfg.SourceExtensions)),
	}
	for _, sp := range selfProtected {
		p, err := policy.CompilePattern(sp.pattern)
		if err != nil {
			panic(fmt.Sprintf("self-protection pattern %q: %v", sp.pattern, err))
		}
		e.selfTier = append(e.selfTier, tierRule{pattern: p, rationale: sp.rationale})
	}
	for _, raw := range cfg.ProtectedPaths {
		p, err := policy.CompilePattern(raw)
		if err != nil {
			continue
		}
		e.policyTier = append(e.policyTier, tierRule{pattern: p, rationale: "protected by policy"})
	}
	for _, name := range cfg.ForbiddenDirs {
		e.forbidden[strings.ToLower(name)] = struct{}{}
	}
	for _, ext := range cfg.SourceExtensions {
		e.sourceExts[strings.ToLower(ext)] = struct{}{}
	}
	return e
}

// SelfProtectedPatterns returns the compiled-in protection patterns.
// The command scanner reuses them for textual reference detection.
func SelfProtectedPatterns() []string {
	out := make([]string, len(selfProtected))
	for i, sp := range selfProtected {
		out[i] = sp.pattern
	}
	return out
}

// Evaluate runs the rule chain against a resolved path. A non-nil
// Violation blocks; a nil Violation with a non-nil Warning allows with an
// advisory.
func (e *Engine) Evaluate(rp *resolve.ResolvedPath) (*Violation, *Warning) {
	rel := rp.Rel

	// 1. Self-protection tier.
	for _, r := range e.selfTier {
		if r.pattern.Match(rel) {
			return &Violation{
				Rule:        RuleSelfProtection,
				Message:     fmt.Sprintf("%s is protected: %s", rel, r.rationale),
				Remediation: "this file is managed by pathguard; edit it manually outside the agent session",
			}, nil
		}
	}

	// 2. Policy-driven protected patterns.
	for _, r := range e.policyTier {
		if r.pattern.Match(rel) {
			return &Violation{
				Rule:        RuleProtectedPath,
				Message:     fmt.Sprintf("%s matches protected pattern %q", rel, r.pattern),
				Remediation: "remove the pattern from protected_paths in " + policy.File + " if this write should be permitted",
			}, nil
		}
	}

	segments := splitSegments(rel)

	// 3. Root lockdown. A registered root file passes lockdown but still
	// continues through the size rules below.
	if len(segments) <= 1 && !e.rootFileAllowed(rel) {
		return &Violation{
			Rule:        RuleRootLockdown,
			Message:     fmt.Sprintf("%q is not a registered root-level file", rel),
			Remediation: "place the file in a subdirectory, or add it to allowed_root_files in " + policy.File,
		}, nil
	}

	// 4. Depth limit. MaxDepth counts directory levels; the filename is
	// the +1.
	if len(segments) > e.cfg.MaxDepth+1 {
		return &Violation{
			Rule:        RuleDepthLimit,
			Message:     fmt.Sprintf("%s is %d levels deep (max %d directories)", rel, len(segments)-1, e.cfg.MaxDepth),
			Remediation: "flatten the layout, or raise max_depth in " + policy.File,
		}, nil
	}

	// 5. Forbidden directory names, case-insensitive, any segment.
	for _, seg := range segments {
		if _, bad := e.forbidden[strings.ToLower(seg)]; bad {
			return &Violation{
				Rule:        RuleForbiddenDir,
				Message:     fmt.Sprintf("%s contains forbidden directory name %q", rel, seg),
				Remediation: "use a purposeful directory name; scratch locations do not belong in the repository",
			}, nil
		}
	}

	name := segments[len(segments)-1]

	// 6. Directive size ceiling, only for files that already exist. A
	// brand-new directive has no line count to judge; that asymmetry is
	// part of the contract.
	if strings.HasSuffix(strings.ToLower(name), directiveSuffix) {
		if lines, exists := countFileLines(rp.Canonical); exists && lines > e.cfg.DirectiveMaxLines {
			return &Violation{
				Rule:        RuleDirectiveSize,
				Message:     fmt.Sprintf("%s has %d lines, over the %d-line directive ceiling", rel, lines, e.cfg.DirectiveMaxLines),
				Remediation: "split the directive before editing it, or raise directive_max_lines in " + policy.File,
			}, nil
		}
		return nil, nil
	}

	// 7. Source size advisory.
	return nil, e.sizeWarning(rp, name)
}

// sizeWarning returns the advisory source-size warning when applicable.
func (e *Engine) sizeWarning(rp *resolve.ResolvedPath, name string) *Warning {
	ext := strings.ToLower(path.Ext(name))
	if _, ok := e.sourceExts[ext]; !ok {
		return nil
	}
	lines, exists := countFileLines(rp.Canonical)
	if !exists || lines <= e.cfg.SourceWarnLines {
		return nil
	}
	return &Warning{
		Rule:    RuleSourceSize,
		Message: fmt.Sprintf("%s has %d lines (advisory threshold %d); consider splitting it", rp.Rel, lines, e.cfg.SourceWarnLines),
	}
}

// rootFileAllowed reports whether a root-level filename is registered.
func (e *Engine) rootFileAllowed(name string) bool {
	for _, allowed := range e.cfg.AllowedRootFiles {
		if name == allowed {
			return true
		}
	}
	return false
}

// splitSegments splits a slash-separated relative path into segments.
// The empty path (the root itself) yields one empty segment, which falls
// through to root lockdown.
func splitSegments(rel string) []string {
	if rel == "" {
		return []string{""}
	}
	return strings.Split(rel, "/")
}
