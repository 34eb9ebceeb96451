// Package resolve turns a possibly-relative, possibly-symlinked,
// possibly-nonexistent path string into a canonical absolute path and
// verifies it stays inside the project root.
//
// Canonicalization runs before any rule evaluates, and the relative form
// every rule matches against is derived from the canonical form, never
// from the original input. Traversal sequences and symlink redirection in
// the input therefore cannot survive into rule matching.
package resolve

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var (
	// ErrUnresolvable reports that every canonicalization strategy ran
	// and failed. The engine treats this as Block: safety could not be
	// positively proven.
	ErrUnresolvable = errors.New("path cannot be canonicalized")

	// ErrNoStrategy reports a resolver with no canonicalization
	// strategies at all. The engine treats this as Error: the safety
	// determination never ran.
	ErrNoStrategy = errors.New("no canonicalization strategy available")

	// ErrOutsideRoot reports a canonical path outside the project root.
	ErrOutsideRoot = errors.New("path resolves outside project root")
)

// ResolvedPath is the canonical view of one target path.
type ResolvedPath struct {
	// Input is the original path string from the hook request.
	Input string

	// Abs is the input anchored to the project root, before
	// canonicalization.
	Abs string

	// Canonical is the symlink-free absolute form.
	Canonical string

	// Rel is the project-relative slash-separated form, derived from
	// Canonical.
	Rel string

	// WasSymlink reports that the input itself was a symlink and was
	// followed one hop before canonicalization.
	WasSymlink bool
}

// strategy is one canonicalization attempt. It receives an absolute path
// that may not fully exist and returns its canonical form.
type strategy func(abs string) (string, error)

// Resolver canonicalizes paths against a fixed project root.
type Resolver struct {
	// Root is the canonical project root.
	Root string

	strategies []strategy
}

// New creates a Resolver for the given project root. The root itself is
// canonicalized once so that containment compares canonical against
// canonical.
func New(root string) *Resolver {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	return &Resolver{
		Root: abs,
		strategies: []strategy{
			canonicalizeInProcess,
			canonicalizeRealpath,
			canonicalizeLexical,
		},
	}
}

// Resolve canonicalizes one path and verifies containment.
// Failures are distinguishable by sentinel: ErrOutsideRoot and
// ErrUnresolvable mean the determination completed negatively (Block);
// ErrNoStrategy means it could not run (Error).
func (r *Resolver) Resolve(input string) (*ResolvedPath, error) {
	rp := &ResolvedPath{Input: input}

	abs := input
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.Root, abs)
	}
	abs = filepath.Clean(abs)

	// Follow a symlink one hop before traversal checking, so a link
	// cannot be used to dodge containment. The hop is recorded for a
	// SYMLINK audit event.
	if target, ok := followSymlink(abs); ok {
		abs = target
		rp.WasSymlink = true
	}
	rp.Abs = abs

	if len(r.strategies) == 0 {
		return nil, ErrNoStrategy
	}

	var lastErr error
	for _, s := range r.strategies {
		canonical, err := s(abs)
		if err != nil {
			lastErr = err
			continue
		}
		rp.Canonical = canonical
		break
	}
	if rp.Canonical == "" {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnresolvable, input, lastErr)
	}

	rel, err := r.contain(rp.Canonical)
	if err != nil {
		return rp, err
	}
	rp.Rel = rel
	return rp, nil
}

// contain verifies the canonical path lies within the root and returns the
// slash-separated relative form. The check is an exact string-prefix test
// against root plus a separator, so a sibling directory whose name merely
// shares the root's name as a prefix ("/work/app-secrets" for root
// "/work/app") never passes.
func (r *Resolver) contain(canonical string) (string, error) {
	if canonical == r.Root {
		return "", nil
	}
	prefix := r.Root + string(filepath.Separator)
	if !strings.HasPrefix(canonical, prefix) {
		return "", fmt.Errorf("%w: %s is not under %s", ErrOutsideRoot, canonical, r.Root)
	}
	return filepath.ToSlash(canonical[len(prefix):]), nil
}

// followSymlink resolves a symlink one hop. Relative link targets are
// interpreted against the link's directory.
func followSymlink(abs string) (string, bool) {
	info, err := os.Lstat(abs)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return "", false
	}
	target, err := os.Readlink(abs)
	if err != nil {
		return "", false
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(abs), target)
	}
	return filepath.Clean(target), true
}

// canonicalizeInProcess resolves symlinks over the longest existing prefix
// and appends the remaining components literally, so brand-new files under
// existing directories still canonicalize.
func canonicalizeInProcess(abs string) (string, error) {
	prefix, rest := splitExisting(abs)
	real, err := filepath.EvalSymlinks(prefix)
	if err != nil {
		return "", err
	}
	if rest == "" {
		return real, nil
	}
	return filepath.Join(real, rest), nil
}

// splitExisting splits abs into its longest existing ancestor and the
// non-existing remainder.
func splitExisting(abs string) (prefix, rest string) {
	prefix = abs
	for {
		if _, err := os.Lstat(prefix); err == nil {
			break
		}
		parent := filepath.Dir(prefix)
		if parent == prefix {
			break
		}
		if rest == "" {
			rest = filepath.Base(prefix)
		} else {
			rest = filepath.Join(filepath.Base(prefix), rest)
		}
		prefix = parent
	}
	return prefix, rest
}

// canonicalizeRealpath shells out to realpath(1) with the path as a
// positional argument. The path is handed to exec as argv, never
// interpolated into a shell expression, so hostile path strings cannot
// inject commands. -m tolerates missing final components.
func canonicalizeRealpath(abs string) (string, error) {
	out, err := exec.Command("realpath", "-m", "--", abs).Output()
	if err != nil {
		return "", fmt.Errorf("realpath: %w", err)
	}
	canonical := strings.TrimRight(string(out), "\n")
	if canonical == "" || !filepath.IsAbs(canonical) {
		return "", fmt.Errorf("realpath: unusable output %q", canonical)
	}
	return canonical, nil
}

// canonicalizeLexical is the last-resort resolver: purely lexical, no
// symlink awareness. It only runs when both real resolvers failed, and it
// still prevents raw traversal sequences from reaching rule matching.
func canonicalizeLexical(abs string) (string, error) {
	return filepath.Clean(abs), nil
}
