package store

import (
	"fmt"
	"strings"

	"github.com/arloliu/helmsman/types"
)

// Separator separates path segments.
const Separator = "/"

// Join builds an absolute path from segments.
//
// Example:
//
//	store.Join("mycluster", "IDEALSTATES", "TestDB") // "/mycluster/IDEALSTATES/TestDB"
func Join(segments ...string) string {
	return Separator + strings.Join(segments, Separator)
}

// Split validates path and returns its segments.
//
// Parameters:
//   - path: Absolute path, for example "/c/LIVEINSTANCES/p1"
//
// Returns:
//   - []string: Path segments without separators
//   - error: types.ErrInvalidPath when path is not absolute or has empty segments
func Split(path string) ([]string, error) {
	if !strings.HasPrefix(path, Separator) || len(path) < 2 {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidPath, path)
	}
	segments := strings.Split(path[1:], Separator)
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("%w: %q", types.ErrInvalidPath, path)
		}
	}

	return segments, nil
}

// Base returns the last segment of path.
func Base(path string) string {
	idx := strings.LastIndex(path, Separator)
	return path[idx+1:]
}

// IsChild reports whether candidate is a direct child of parent.
func IsChild(parent, candidate string) bool {
	rest, ok := strings.CutPrefix(candidate, parent+Separator)
	return ok && rest != "" && !strings.Contains(rest, Separator)
}

// IsWithin reports whether candidate equals root or lies below it.
func IsWithin(root, candidate string) bool {
	return candidate == root || strings.HasPrefix(candidate, root+Separator)
}
