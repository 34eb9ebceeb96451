// Package embedded carries the starter policy file shipped inside the
// pathguard binary, so `pathguard policy --init` works without a repo
// checkout or network access.
package embedded

import _ "embed"

// StarterPolicy is the commented policy template written by
// `pathguard policy --init`. It mirrors the compiled-in defaults.
//
//go:embed policy.yaml
var StarterPolicy []byte
