// Package engine orchestrates pathguard's decision chain: target
// extraction, path resolution, the ordered structural rules, the command
// heuristics, and the audit trail, collapsed into a single verdict.
//
// One invocation is one synchronous, single-threaded evaluation with
// three terminal states and no retries. The engine fails closed: any
// inability to positively prove safety ends in Block or Error, never
// Allow.
package engine

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/boshu2/pathguard/internal/audit"
	"github.com/boshu2/pathguard/internal/policy"
	"github.com/boshu2/pathguard/internal/resolve"
	"github.com/boshu2/pathguard/internal/rules"
	"github.com/boshu2/pathguard/internal/scan"
)

// Verdict is a terminal state of one evaluation.
type Verdict int

// The three terminal states. Block means policy says no; Error means the
// engine could not determine an answer safely. They are always
// distinguishable by exit code.
const (
	Allow Verdict = iota
	Block
	Error
)

// String returns the verdict tag used in diagnostics.
func (v Verdict) String() string {
	switch v {
	case Allow:
		return "ALLOW"
	case Block:
		return "BLOCK"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Decision is the outcome of one invocation. When the verdict is not
// Allow it names the rule that fired and how to remediate.
type Decision struct {
	Verdict     Verdict
	Rule        string
	Message     string
	Remediation string
	// Warning carries the advisory source-size diagnostic on Allow
	// verdicts. It never changes the exit code.
	Warning string
	// ExitCode is the process-visible encoding of the verdict.
	ExitCode int
}

// Engine evaluates hook requests against one loaded policy.
type Engine struct {
	cfg      *policy.Config
	resolver *resolve.Resolver
	rules    *rules.Engine
	scanner  *scan.Scanner
	log      *audit.Logger
}

// New builds an Engine for one invocation. The policy is treated as
// immutable from here on.
func New(cfg *policy.Config, root string) *Engine {
	resolver := resolve.New(root)
	return &Engine{
		cfg:      cfg,
		resolver: resolver,
		rules:    rules.New(cfg),
		scanner:  scan.New(cfg),
		log:      audit.New(auditPath(resolver.Root, cfg)),
	}
}

// auditPath anchors the configured audit log location to the project root.
func auditPath(root string, cfg *policy.Config) string {
	return filepath.Join(root, filepath.FromSlash(cfg.AuditLog))
}

// Evaluate runs the decision chain for one request and writes exactly one
// verdict-level audit record.
func (e *Engine) Evaluate(req *Request) Decision {
	if cmd, ok := req.CommandLine(); ok {
		return e.evaluateCommand(cmd)
	}
	path, ok := req.TargetPath()
	if !ok {
		// The engine only judges requests it recognizes.
		return e.allow("no recognized target in request", "")
	}
	return e.evaluatePath(path)
}

// evaluatePath runs the resolver and the structural rule chain.
func (e *Engine) evaluatePath(path string) Decision {
	rp, err := e.resolver.Resolve(path)
	if rp != nil && rp.WasSymlink {
		e.log.Log(audit.LevelSymlink, fmt.Sprintf("%s is a symlink, following to %s", rp.Input, rp.Abs))
	}
	if err != nil {
		switch {
		case errors.Is(err, resolve.ErrNoStrategy):
			return e.fail("path-resolution", err.Error(),
				"no canonicalization strategy could run; the safety determination is incomplete")
		case errors.Is(err, resolve.ErrOutsideRoot):
			return e.block("containment", err.Error(),
				"keep writes inside the project root")
		default:
			// Resolution ran and failed; the safe answer is no.
			return e.block("path-resolution", err.Error(),
				"use a plain project-relative path the resolver can canonicalize")
		}
	}

	violation, warning := e.rules.Evaluate(rp)
	if violation != nil {
		return e.block(violation.Rule, violation.Message, violation.Remediation)
	}

	warnMsg := ""
	if warning != nil {
		e.log.Log(audit.LevelWarn, warning.Message)
		warnMsg = warning.Message
	}
	return e.allow("write permitted: "+displayRel(rp), warnMsg)
}

// evaluateCommand runs the heuristic scanner instead of the path chain.
func (e *Engine) evaluateCommand(cmd string) Decision {
	if finding := e.scanner.Scan(cmd); finding != nil {
		return e.block(finding.Rule, finding.Message, finding.Remediation)
	}
	return e.allow("command permitted", "")
}

// allow returns the Allow terminal state with its audit record.
func (e *Engine) allow(message, warning string) Decision {
	e.log.Log(audit.LevelAllow, message)
	return Decision{
		Verdict:  Allow,
		Message:  message,
		Warning:  warning,
		ExitCode: e.cfg.ExitAllow,
	}
}

// block returns the Block terminal state with its audit record.
func (e *Engine) block(rule, message, remediation string) Decision {
	e.log.Log(audit.LevelBlock, rule+": "+message)
	return Decision{
		Verdict:     Block,
		Rule:        rule,
		Message:     message,
		Remediation: remediation,
		ExitCode:    e.cfg.ExitBlock,
	}
}

// fail returns the Error terminal state with its audit record.
func (e *Engine) fail(rule, message, remediation string) Decision {
	e.log.Log(audit.LevelError, rule+": "+message)
	return Decision{
		Verdict:     Error,
		Rule:        rule,
		Message:     message,
		Remediation: remediation,
		ExitCode:    e.cfg.ExitError,
	}
}

// ErrorDecision builds an Error decision for failures that happen before
// an Engine exists (unreadable policy, undecodable input). Exit codes
// come from the policy when one loaded, otherwise from defaults — the
// convention must hold even when configuration is the thing that broke.
func ErrorDecision(cfg *policy.Config, rule, message, remediation string) Decision {
	if cfg == nil {
		cfg = policy.Default()
	}
	return Decision{
		Verdict:     Error,
		Rule:        rule,
		Message:     message,
		Remediation: remediation,
		ExitCode:    cfg.ExitError,
	}
}

// displayRel names the target in allow messages.
func displayRel(rp *resolve.ResolvedPath) string {
	if rp.Rel == "" {
		return "."
	}
	return rp.Rel
}
