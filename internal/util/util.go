package util

import (
	"path/filepath"
	"strings"
)

// TrimExt returns the base name of path without its last extension.
func TrimExt(path string) string {
	base := filepath.Base(path)

	return strings.TrimSuffix(base, filepath.Ext(base))
}
