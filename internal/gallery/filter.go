package gallery

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Reason explains why a gallery was filtered.
type Reason string

const (
	ReasonLanguage Reason = "Language not match"
	ReasonTags     Reason = "Tags blacklist match"
	ReasonTypes    Reason = "Types blacklist match"
)

// Filter holds the user's gallery rules. An empty LanguagesInclude set
// accepts every language.
type Filter struct {
	LanguagesInclude []string
	TagsBlacklist    []string
	TypesBlacklist   []string
}

// Check reports whether m is rejected and why. Rules are evaluated in
// language, tags, types order and the first hit wins.
func (f Filter) Check(m *Metadata) (Reason, bool) {
	if len(f.LanguagesInclude) > 0 && !containsFold(f.LanguagesInclude, m.Language) {
		return ReasonLanguage, true
	}
	for _, tag := range m.TagNames() {
		if containsFold(f.TagsBlacklist, tag) {
			return ReasonTags, true
		}
	}
	if containsFold(f.TypesBlacklist, m.Type) {
		return ReasonTypes, true
	}
	return "", false
}

func containsFold(list []string, v string) bool {
	v = strings.TrimSpace(v)
	for _, s := range list {
		if strings.EqualFold(strings.TrimSpace(s), v) {
			return true
		}
	}
	return false
}

// ReadList reads one entry per line, skipping blank lines and # comments.
// A missing file yields an empty list.
func ReadList(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open filter list: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read filter list %s: %w", path, err)
	}
	return out, nil
}
