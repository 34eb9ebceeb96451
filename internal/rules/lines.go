package rules

import (
	"bytes"
	"os"
)

// countFileLines returns the line count of an existing regular file.
// The second return is false when the file does not exist or cannot be
// read; size rules simply do not apply then.
func countFileLines(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	if len(data) == 0 {
		return 0, true
	}
	lines := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		lines++
	}
	return lines, true
}
