package policy

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidPattern reports a protected-path pattern that cannot compile.
var ErrInvalidPattern = errors.New("invalid pattern")

// Pattern is a compiled protected-path matcher. Patterns are anchored:
// they must match the entire project-relative path, never a substring.
// "*" matches within a single path segment and never crosses "/";
// "?" matches exactly one non-separator byte. Everything else is literal.
type Pattern struct {
	source string
	re     *regexp.Regexp
}

// tokenKind discriminates pattern tokens.
type tokenKind int

const (
	tokenLiteral tokenKind = iota
	tokenStar
	tokenQuestion
)

// token is one element of a tokenized pattern.
type token struct {
	kind tokenKind
	text string // literal run, only for tokenLiteral
}

// CompilePattern tokenizes and compiles a declarative pattern into an
// anchored matcher. Literal runs are escaped before wildcard expansion is
// applied, so a dot or bracket in a pattern can never be absorbed by an
// adjacent wildcard.
func CompilePattern(source string) (*Pattern, error) {
	normalized := strings.TrimPrefix(strings.TrimSpace(source), "/")
	if normalized == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPattern)
	}
	if strings.Contains(normalized, "**") {
		return nil, fmt.Errorf("%w: %q: multi-segment wildcard not supported", ErrInvalidPattern, source)
	}

	var b strings.Builder
	b.WriteByte('^')
	for _, tok := range tokenize(normalized) {
		switch tok.kind {
		case tokenLiteral:
			b.WriteString(regexp.QuoteMeta(tok.text))
		case tokenStar:
			b.WriteString(`[^/]*`)
		case tokenQuestion:
			b.WriteString(`[^/]`)
		}
	}
	b.WriteByte('$')

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, source, err)
	}
	return &Pattern{source: normalized, re: re}, nil
}

// tokenize splits a pattern into literal runs and wildcard tokens.
func tokenize(pattern string) []token {
	var tokens []token
	start := 0
	flush := func(end int) {
		if end > start {
			tokens = append(tokens, token{kind: tokenLiteral, text: pattern[start:end]})
		}
	}
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '*':
			flush(i)
			tokens = append(tokens, token{kind: tokenStar})
			start = i + 1
		case '?':
			flush(i)
			tokens = append(tokens, token{kind: tokenQuestion})
			start = i + 1
		}
	}
	flush(len(pattern))
	return tokens
}

// Match reports whether the pattern matches the full relative path.
// rel must be slash-separated and root-relative, as produced by the
// resolver; matching the resolver's output rather than raw input is what
// keeps traversal sequences out of rule evaluation.
func (p *Pattern) Match(rel string) bool {
	if p == nil || p.re == nil || rel == "" {
		return false
	}
	return p.re.MatchString(rel)
}

// String returns the normalized pattern source.
func (p *Pattern) String() string {
	return p.source
}

// LiteralStem returns the longest wildcard-free prefix fragment of the
// pattern, used by the command scanner for textual reference detection.
// For "secrets/*" it returns "secrets/", for ".env.*" it returns ".env.".
func (p *Pattern) LiteralStem() string {
	if i := strings.IndexAny(p.source, "*?"); i >= 0 {
		return p.source[:i]
	}
	return p.source
}
