package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/boshu2/pathguard/internal/engine"
)

// withRoot points the global --root flag at a temp project for one test.
func withRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	prev := projectRoot
	projectRoot = root
	t.Cleanup(func() { projectRoot = prev })
	return root
}

func TestRunCheck_ExitCodes(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		exit  int
	}{
		{
			"allowed write",
			`{"tool_name":"Write","tool_input":{"file_path":"internal/server/server.go"}}`,
			0,
		},
		{
			"blocked protected file",
			`{"tool_name":"Edit","tool_input":{"file_path":".env"}}`,
			2,
		},
		{
			"blocked command",
			`{"tool_name":"Bash","tool_input":{"command":"git commit --no-verify"}}`,
			2,
		},
		{
			"allowed command",
			`{"tool_name":"Bash","tool_input":{"command":"go vet ./..."}}`,
			0,
		},
		{
			"malformed input",
			`{"tool_name":`,
			1,
		},
		{
			"unrecognized target",
			`{"tool_name":"Glob","tool_input":{"pattern":"**/*.go"}}`,
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withRoot(t)
			var stderr bytes.Buffer
			if got := runCheck(strings.NewReader(tt.stdin), &stderr); got != tt.exit {
				t.Fatalf("exit = %d, want %d (stderr: %s)", got, tt.exit, stderr.String())
			}
		})
	}
}

func TestRunCheck_MalformedPolicyIsError(t *testing.T) {
	root := withRoot(t)
	writeFile(t, root, ".agents/pathguard/policy.yaml", "max_depth: [not, an, int]\n")

	var stderr bytes.Buffer
	in := `{"tool_name":"Write","tool_input":{"file_path":"internal/a.go"}}`
	if got := runCheck(strings.NewReader(in), &stderr); got != 1 {
		t.Fatalf("exit = %d, want 1 for a malformed policy", got)
	}
	if !strings.Contains(stderr.String(), "ERROR") {
		t.Errorf("stderr = %q, want ERROR marker", stderr.String())
	}
}

func TestRunCheck_PolicyOverridesExitBlock(t *testing.T) {
	root := withRoot(t)
	writeFile(t, root, ".agents/pathguard/policy.yaml", "exit_block: 3\n")

	var stderr bytes.Buffer
	in := `{"tool_name":"Edit","tool_input":{"file_path":".env"}}`
	if got := runCheck(strings.NewReader(in), &stderr); got != 3 {
		t.Fatalf("exit = %d, want configured block code 3", got)
	}
}

func TestPrintDecision(t *testing.T) {
	var out bytes.Buffer
	printDecision(&out, engine.Decision{
		Verdict:     engine.Block,
		Rule:        "protected-path",
		Message:     ".env matches protected pattern",
		Remediation: "remove the pattern if this write should be permitted",
	})
	got := out.String()
	for _, want := range []string{"BLOCK", "protected-path", "remove the pattern"} {
		if !strings.Contains(got, want) {
			t.Errorf("block output %q missing %q", got, want)
		}
	}

	out.Reset()
	printDecision(&out, engine.Decision{Verdict: engine.Allow})
	if out.Len() != 0 {
		t.Errorf("clean allow produced output: %q", out.String())
	}

	out.Reset()
	printDecision(&out, engine.Decision{Verdict: engine.Allow, Warning: "big file"})
	if !strings.Contains(out.String(), "big file") {
		t.Errorf("allow-with-warning output %q missing the advisory", out.String())
	}

	out.Reset()
	printDecision(&out, engine.Decision{Verdict: engine.Error, Rule: "policy", Message: "unreadable"})
	if !strings.Contains(out.String(), "could not be completed") {
		t.Errorf("error output %q missing the determination notice", out.String())
	}
}
