package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.MaxDepth != 5 {
		t.Errorf("Default MaxDepth = %d, want 5", cfg.MaxDepth)
	}
	if cfg.DirectiveMaxLines != 200 {
		t.Errorf("Default DirectiveMaxLines = %d, want 200", cfg.DirectiveMaxLines)
	}
	if cfg.SourceWarnLines != 500 {
		t.Errorf("Default SourceWarnLines = %d, want 500", cfg.SourceWarnLines)
	}
	if cfg.ExitAllow != 0 || cfg.ExitBlock != 2 || cfg.ExitError != 1 {
		t.Errorf("Default exit codes = %d/%d/%d, want 0/2/1", cfg.ExitAllow, cfg.ExitBlock, cfg.ExitError)
	}
	if cfg.AuditLog != ".agents/pathguard/audit.log" {
		t.Errorf("Default AuditLog = %q", cfg.AuditLog)
	}
	if len(cfg.ProtectedPaths) == 0 || len(cfg.ForbiddenDirs) == 0 || len(cfg.AllowedRootFiles) == 0 {
		t.Error("Default policy must carry protected paths, forbidden dirs, and root allow-list")
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("Default policy must validate, got %v", err)
	}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	root := t.TempDir()

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load = %v, want nil", err)
	}
	want := Default()
	if cfg.MaxDepth != want.MaxDepth || cfg.AuditLog != want.AuditLog {
		t.Errorf("Load without policy file = %+v, want defaults", cfg)
	}
}

// writePolicy writes a policy file into root at the fixed location.
func writePolicy(t *testing.T, root, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(File))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_OverlayIsFieldByField(t *testing.T) {
	root := t.TempDir()
	writePolicy(t, root, "max_depth: 3\nprotected_paths:\n  - \"*.secret\"\n")

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load = %v, want nil", err)
	}
	if cfg.MaxDepth != 3 {
		t.Errorf("MaxDepth = %d, want overlay value 3", cfg.MaxDepth)
	}
	if len(cfg.ProtectedPaths) != 1 || cfg.ProtectedPaths[0] != "*.secret" {
		t.Errorf("ProtectedPaths = %v, want overlay list", cfg.ProtectedPaths)
	}
	// Fields the file does not name keep their defaults.
	if cfg.SourceWarnLines != Default().SourceWarnLines {
		t.Errorf("SourceWarnLines = %d, want default %d", cfg.SourceWarnLines, Default().SourceWarnLines)
	}
	if cfg.AuditLog != Default().AuditLog {
		t.Errorf("AuditLog = %q, want default", cfg.AuditLog)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	root := t.TempDir()
	writePolicy(t, root, "max_depth: [not an int\n")

	_, err := Load(root)
	if !errors.Is(err, ErrMalformedPolicy) {
		t.Fatalf("Load = %v, want ErrMalformedPolicy", err)
	}
}

func TestLoad_InvalidFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative depth", "max_depth: -1\n"},
		{"nonzero allow code", "exit_allow: 3\n"},
		{"colliding codes", "exit_block: 1\n"},
		{"bad pattern", "protected_paths:\n  - \"a/**\"\n"},
		{"zero ceiling", "directive_max_lines: -2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writePolicy(t, root, tt.content)

			if _, err := Load(root); !errors.Is(err, ErrMalformedPolicy) {
				t.Errorf("Load = %v, want ErrMalformedPolicy", err)
			}
		})
	}
}

func TestMerge_EmptyOverlayKeepsDefaults(t *testing.T) {
	dst := Default()
	got := merge(dst, &Config{})

	if got.MaxDepth != 5 || len(got.ProtectedPaths) == 0 || got.ExitBlock != 2 {
		t.Errorf("merge with empty overlay changed defaults: %+v", got)
	}
}
