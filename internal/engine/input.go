package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedInput reports a hook request that could not be decoded.
// The engine cannot judge what it cannot read, so this maps to Error.
var ErrMalformedInput = errors.New("malformed hook input")

// ToolInput carries the fields pathguard recognizes from a PreToolUse
// tool_input payload. File tools identify their target through one of two
// path fields; the shell tool carries a literal command line.
type ToolInput struct {
	FilePath     string `json:"file_path,omitempty"`
	NotebookPath string `json:"notebook_path,omitempty"`
	Command      string `json:"command,omitempty"`
}

// Request is the structured PreToolUse record delivered on stdin.
type Request struct {
	SessionID string    `json:"session_id,omitempty"`
	HookEvent string    `json:"hook_event_name,omitempty"`
	ToolName  string    `json:"tool_name,omitempty"`
	ToolInput ToolInput `json:"tool_input"`
}

// ParseRequest decodes one hook request from r.
func ParseRequest(r io.Reader) (*Request, error) {
	var req Request
	dec := json.NewDecoder(r)
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return &req, nil
}

// TargetPath returns the file path this request targets, preferring
// file_path over notebook_path, and whether one was present.
func (r *Request) TargetPath() (string, bool) {
	if r.ToolInput.FilePath != "" {
		return r.ToolInput.FilePath, true
	}
	if r.ToolInput.NotebookPath != "" {
		return r.ToolInput.NotebookPath, true
	}
	return "", false
}

// CommandLine returns the raw command string and whether one was present.
func (r *Request) CommandLine() (string, bool) {
	return r.ToolInput.Command, r.ToolInput.Command != ""
}
