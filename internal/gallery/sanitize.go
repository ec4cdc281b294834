package gallery

import (
	"path/filepath"
	"strings"
	"unicode"
)

// invalidPathChars are replaced in every path component.
const invalidPathChars = ":*?\"<>|\t\n\r\v\f/\\"

// SanitizeComponent replaces unprintable and filesystem-hostile characters
// with "-" and trims surrounding spaces and dots.
func SanitizeComponent(name string) string {
	name = strings.Map(func(r rune) rune {
		if !unicode.IsPrint(r) || strings.ContainsRune(invalidPathChars, r) {
			return '-'
		}
		return r
	}, name)
	return strings.Trim(name, " .")
}

// ValidatePath ensures path stays within root.
func ValidatePath(path, root string) error {
	cleanPath := filepath.Clean(path)
	cleanRoot := filepath.Clean(root)
	if cleanPath == cleanRoot {
		return nil
	}
	if !strings.HasSuffix(cleanRoot, string(filepath.Separator)) {
		cleanRoot += string(filepath.Separator)
	}
	if !strings.HasPrefix(cleanPath, cleanRoot) {
		return ErrPathTraversal
	}
	return nil
}
