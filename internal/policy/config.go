// Package policy provides the merged rule parameters pathguard evaluates
// against. Policy is loaded from (highest to lowest priority):
// 1. Project policy file (.agents/pathguard/policy.yaml)
// 2. Compiled-in defaults
//
// The policy file is declarative data only. Nothing in it is executed,
// expanded, or interpolated; a file that cannot be parsed makes the engine
// refuse to decide (Error verdict) rather than fall back to guessing.
package policy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// File is the project-relative location of the optional policy file.
const File = ".agents/pathguard/policy.yaml"

// ErrMalformedPolicy reports a policy file that exists but cannot be parsed
// or carries invalid field values.
var ErrMalformedPolicy = errors.New("malformed policy file")

// Config holds all pathguard rule parameters for one invocation.
// Once loaded it is treated as immutable; no component mutates it.
type Config struct {
	// ProtectedPaths are glob patterns (relative to the project root) that
	// must never be written by an agent. Evaluated in order after the
	// compiled-in self-protection tier.
	ProtectedPaths []string `yaml:"protected_paths" json:"protected_paths"`

	// ForbiddenDirs are directory names (compared case-insensitively) that
	// block a write when they appear as any segment of the target path.
	ForbiddenDirs []string `yaml:"forbidden_dirs" json:"forbidden_dirs"`

	// MaxDepth is the maximum number of directory levels below the project
	// root. The filename itself is not counted.
	MaxDepth int `yaml:"max_depth" json:"max_depth"`

	// AllowedRootFiles are the only filenames permitted directly in the
	// project root.
	AllowedRootFiles []string `yaml:"allowed_root_files" json:"allowed_root_files"`

	// AuditLog is the project-relative audit log location.
	AuditLog string `yaml:"audit_log" json:"audit_log"`

	// DirectiveMaxLines is the hard size ceiling for governance directive
	// documents (basenames matching *-directive.md).
	DirectiveMaxLines int `yaml:"directive_max_lines" json:"directive_max_lines"`

	// SourceWarnLines is the advisory size threshold for source files.
	// Exceeding it never blocks; it produces a WARN audit record.
	SourceWarnLines int `yaml:"source_warn_lines" json:"source_warn_lines"`

	// SourceExtensions are the file extensions the advisory size rule
	// applies to.
	SourceExtensions []string `yaml:"source_extensions" json:"source_extensions"`

	// Exit codes communicated to the hook runner. Allow must be zero for
	// Claude Code to proceed; Block must be the code the runner treats as
	// "deny and feed stderr back to the agent".
	ExitAllow int `yaml:"exit_allow" json:"exit_allow"`
	ExitBlock int `yaml:"exit_block" json:"exit_block"`
	ExitError int `yaml:"exit_error" json:"exit_error"`
}

// Default returns the compiled-in policy.
func Default() *Config {
	return &Config{
		ProtectedPaths: []string{
			".env",
			".env.*",
			"*.pem",
			"*.key",
			"secrets/*",
			".git/config",
			".git/hooks/*",
		},
		ForbiddenDirs: []string{
			"tmp", "temp", "scratch", "backup", "old", "archive",
		},
		MaxDepth: 5,
		AllowedRootFiles: []string{
			"go.mod", "go.sum",
			"Makefile", "Dockerfile", "docker-compose.yml",
			"README.md", "LICENSE", "CLAUDE.md", "AGENTS.md",
			".gitignore", ".gitattributes",
			"package.json", "package-lock.json",
			"pyproject.toml", "requirements.txt",
			".env.example",
		},
		AuditLog:          ".agents/pathguard/audit.log",
		DirectiveMaxLines: 200,
		SourceWarnLines:   500,
		SourceExtensions: []string{
			".go", ".py", ".js", ".ts", ".tsx", ".jsx",
			".rs", ".java", ".c", ".cc", ".cpp", ".h", ".rb", ".sh",
		},
		ExitAllow: 0,
		ExitBlock: 2,
		ExitError: 1,
	}
}

// Load returns the effective policy for a project root: the policy file
// overlaid field-by-field onto defaults. A missing file yields pure
// defaults. A present but unparseable file yields ErrMalformedPolicy —
// the engine cannot decide safely without knowing the real policy.
func Load(root string) (*Config, error) {
	return loadFromPath(filepath.Join(root, filepath.FromSlash(File)))
}

// loadFromPath loads and merges the policy file at an explicit path.
func loadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrMalformedPolicy, path, err)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrMalformedPolicy, path, err)
	}

	cfg = merge(cfg, &overlay)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge merges src into dst, with src values taking precedence.
// Empty slices and zero ints in src leave the defaults in place, so a
// partial policy file only overrides what it names.
func merge(dst, src *Config) *Config {
	mergeList(&dst.ProtectedPaths, src.ProtectedPaths)
	mergeList(&dst.ForbiddenDirs, src.ForbiddenDirs)
	mergeList(&dst.AllowedRootFiles, src.AllowedRootFiles)
	mergeList(&dst.SourceExtensions, src.SourceExtensions)
	mergeInt(&dst.MaxDepth, src.MaxDepth)
	mergeInt(&dst.DirectiveMaxLines, src.DirectiveMaxLines)
	mergeInt(&dst.SourceWarnLines, src.SourceWarnLines)
	mergeStr(&dst.AuditLog, src.AuditLog)
	mergeInt(&dst.ExitAllow, src.ExitAllow)
	mergeInt(&dst.ExitBlock, src.ExitBlock)
	mergeInt(&dst.ExitError, src.ExitError)
	return dst
}

// mergeStr overwrites dst with src when src is non-empty.
func mergeStr(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// mergeInt overwrites dst with src when src is non-zero.
func mergeInt(dst *int, src int) {
	if src != 0 {
		*dst = src
	}
}

// mergeList overwrites dst with src when src is non-empty.
func mergeList(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = src
	}
}

// validate rejects policies the engine cannot enforce coherently.
func (c *Config) validate() error {
	if c.MaxDepth < 1 {
		return fmt.Errorf("%w: max_depth must be >= 1, got %d", ErrMalformedPolicy, c.MaxDepth)
	}
	if c.DirectiveMaxLines < 1 {
		return fmt.Errorf("%w: directive_max_lines must be >= 1, got %d", ErrMalformedPolicy, c.DirectiveMaxLines)
	}
	if c.SourceWarnLines < 1 {
		return fmt.Errorf("%w: source_warn_lines must be >= 1, got %d", ErrMalformedPolicy, c.SourceWarnLines)
	}
	if c.ExitAllow != 0 {
		return fmt.Errorf("%w: exit_allow must be 0, got %d", ErrMalformedPolicy, c.ExitAllow)
	}
	if c.ExitBlock == c.ExitAllow || c.ExitError == c.ExitAllow || c.ExitBlock == c.ExitError {
		return fmt.Errorf("%w: exit codes must be pairwise distinct (allow=%d block=%d error=%d)",
			ErrMalformedPolicy, c.ExitAllow, c.ExitBlock, c.ExitError)
	}
	for _, p := range c.ProtectedPaths {
		if _, err := CompilePattern(p); err != nil {
			return fmt.Errorf("%w: protected pattern %q: %v", ErrMalformedPolicy, p, err)
		}
	}
	return nil
}
