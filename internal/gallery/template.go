package gallery

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Default destination formats.
const (
	DefaultLocationFormat = "{item}/{gallery_id}"
	DefaultFilenameFormat = "{filename}.{ext}"
)

// Format is a pair of destination templates for one download type.
type Format struct {
	Location string
	Filename string
}

// formatPattern matches {name} or {name:02} style placeholders.
var formatPattern = regexp.MustCompile(`\{(\w+)(?::(\d+))?\}`)

// ApplyTemplate substitutes vars into template. {name:N} zero-pads
// integer values to width N. Unknown placeholders are left untouched.
func ApplyTemplate(template string, vars map[string]any) string {
	return formatPattern.ReplaceAllStringFunc(template, func(match string) string {
		parts := formatPattern.FindStringSubmatch(match)
		val, ok := vars[parts[1]]
		if !ok {
			return match
		}
		if parts[2] != "" {
			if width, err := strconv.Atoi(parts[2]); err == nil {
				switch v := val.(type) {
				case int:
					return fmt.Sprintf("%0*d", width, v)
				case int64:
					return fmt.Sprintf("%0*d", width, v)
				}
			}
		}
		return fmt.Sprintf("%v", val)
	})
}

// templateVars exposes the metadata fields usable in destination formats.
// String values are sanitized so they cannot add path components.
func (m *Metadata) templateVars(item string) map[string]any {
	first := func(list []string) string {
		if len(list) == 0 {
			return Placeholder
		}
		return list[0]
	}
	return map[string]any{
		"item":             SanitizeComponent(item),
		"gallery_id":       m.ID,
		"title":            SanitizeComponent(m.Title),
		"japanese_title":   SanitizeComponent(m.JapaneseTitle),
		"original_title":   SanitizeComponent(m.OriginalTitle),
		"translated_title": SanitizeComponent(m.TranslatedTitle),
		"artist_name":      SanitizeComponent(first(m.Artists)),
		"group_name":       SanitizeComponent(first(m.Groups)),
		"upload_date":      m.UploadDate.Format("2006-01-02"),
		"language":         SanitizeComponent(m.Language),
		"type":             SanitizeComponent(m.Type),
		"pages":            m.Pages,
	}
}

// Locate computes m.Location under root and the local filename of every
// file. Relative location formats are resolved against root.
func (m *Metadata) Locate(root, item string, f Format) error {
	if f.Location == "" {
		f.Location = DefaultLocationFormat
	}
	if f.Filename == "" {
		f.Filename = DefaultFilenameFormat
	}
	vars := m.templateVars(item)

	loc := filepath.Clean(ApplyTemplate(f.Location, vars))
	if !filepath.IsAbs(loc) {
		loc = filepath.Join(root, loc)
		if err := ValidatePath(loc, root); err != nil {
			return err
		}
	}
	m.Location = loc

	for i := range m.Files {
		file := &m.Files[i]
		vars["filename"] = SanitizeComponent(file.Name)
		vars["ext"] = SanitizeComponent(file.Ext)
		vars["page"] = i + 1
		name := SanitizeComponent(ApplyTemplate(f.Filename, vars))
		if name == "" {
			name = strconv.Itoa(i + 1)
		}
		file.Filename = name
	}
	return nil
}

// Path returns the local path of file within m.
func (m *Metadata) Path(file *File) string {
	return filepath.Join(m.Location, file.Filename)
}

// ParseItems splits a comma separated request into trimmed, non-empty items.
func ParseItems(raw string) []string {
	var items []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
