package stream

import (
	"path/filepath"
	"strings"
)

// CanonicalPath resolves symlinks and relative segments so prefix checks
// cannot be bypassed with links or "..". Falls back to Abs-only when the
// target does not exist yet.
func CanonicalPath(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}
	return filepath.Abs(resolved)
}

// PathAllowed reports whether the canonicalized path lives under one of the
// given library roots. Roots are canonicalized too, so symlinked library
// folders still match.
func PathAllowed(path string, roots []string) bool {
	canonical, err := CanonicalPath(path)
	if err != nil {
		return false
	}
	for _, root := range roots {
		canonicalRoot, err := CanonicalPath(root)
		if err != nil {
			continue
		}
		if canonical == canonicalRoot {
			return true
		}
		if strings.HasPrefix(canonical, canonicalRoot+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
