package util

import (
	"path/filepath"
)

// CombinePaths combines a base directory with a relative path.
// If the relative path is absolute, it is returned as-is.
func CombinePaths(base, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(base, rel)
}
