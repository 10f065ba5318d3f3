package filesystem

import (
	"os"
	"path/filepath"
	"strings"
)

// UserHomeDir returns the current user's home directory.
// If the home directory cannot be determined, it returns "." as a fallback.
func UserHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// DataDir returns the kmd state directory (~/.kmd).
func DataDir() string {
	return filepath.Join(UserHomeDir(), ".kmd")
}

// ExpandHome rewrites a leading "~/" to the user's home directory.
// Absolute paths and plain relative paths come back unchanged.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(UserHomeDir(), path[2:])
	}
	return path
}
