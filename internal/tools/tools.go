// Package tools locates the external forensic parser binaries.
package tools

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ErrToolMissing reports that a required external binary could not be found
// in any candidate path or on PATH. The artifact type bound to the tool is
// skipped; the run continues.
type ErrToolMissing struct {
	Tool string
}

func (e *ErrToolMissing) Error() string {
	return fmt.Sprintf("tool missing: %s", e.Tool)
}

// IsToolMissing reports whether err is an ErrToolMissing.
func IsToolMissing(err error) bool {
	var tm *ErrToolMissing
	return errors.As(err, &tm)
}

// Find returns the first executable among the candidate paths, falling back
// to a PATH lookup on the bare name. Detection happens before any
// invocation so a missing binary never results in an exec attempt.
func Find(candidates []string, name string) (string, error) {
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&0o111 == 0 {
			continue
		}
		return path, nil
	}
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	return "", &ErrToolMissing{Tool: name}
}
