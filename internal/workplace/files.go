package workplace

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// safeFileName reduces an uploaded file name to a single safe path element.
func safeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	base = strings.Trim(unsafeFileChars.ReplaceAllString(base, "_"), "._")
	if base == "" {
		return "upload"
	}
	return base
}

// writeFile stores data at path, creating the directory.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fileError(err, "create_dir", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fileError(err, "write_file", path)
	}
	return nil
}

// toSlash keeps stored paths portable across platforms.
func toSlash(path string) string {
	return filepath.ToSlash(path)
}
