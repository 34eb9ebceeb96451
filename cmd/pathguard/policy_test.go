package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/boshu2/pathguard/internal/policy"
)

func TestInitPolicyWritesLoadableStarter(t *testing.T) {
	root := t.TempDir()

	if err := initPolicy(root); err != nil {
		t.Fatalf("initPolicy: %v", err)
	}
	path := filepath.Join(root, filepath.FromSlash(policy.File))
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("starter policy not written: %v", err)
	}

	// The starter must load and validate exactly as written.
	cfg, err := policy.Load(root)
	if err != nil {
		t.Fatalf("starter policy does not load: %v", err)
	}
	if cfg.MaxDepth != 5 {
		t.Errorf("MaxDepth = %d, want 5", cfg.MaxDepth)
	}

	if err := initPolicy(root); err == nil {
		t.Fatal("initPolicy overwrote an existing policy file")
	}
}
