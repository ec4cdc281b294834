package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/vmunix/galleria/internal/gallery"
)

// category describes how a filter category maps onto the schema.
type category struct {
	name     string
	table    string // entity table
	idCol    string
	nameCol  string
	junction string // empty for categories stored on Galleries
	linkCol  string // junction column, or Galleries column for direct ones
}

var categories = map[string]category{
	"artist":    {"artist", "Artists", "artist_id", "artist_name", "Artist_Gallery", "artist"},
	"character": {"character", "Characters", "character_id", "character_name", "Character_Gallery", "character"},
	"group":     {"group", "Groups", "group_id", "group_name", "Group_Gallery", "group"},
	"language":  {"language", "Languages", "language_id", "language_name", "Language_Gallery", "language"},
	"series":    {"series", "Series", "series_id", "series_name", "Series_Gallery", "series"},
	"tag":       {"tag", "Tags", "tag_id", "tag_name", "Tag_Gallery", "tag"},
	"type":      {"type", "Types", "type_id", "type_name", "", "type"},
	"source":    {"source", "Sources", "source_id", "source_name", "", "source"},
	"gallery":   {"gallery", "", "", "", "", "gallery_id"},
}

// categoryOrder is the deterministic order used for "*" joins.
var categoryOrder = []string{"artist", "character", "group", "language", "series", "tag", "type", "source"}

func lookupCategory(name string) (category, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if c, ok := categories[name]; ok {
		return c, nil
	}
	names := make([]string, 0, len(categories))
	for n := range categories {
		names = append(names, n)
	}
	if best := gallery.Suggest(name, names); best != "" {
		return category{}, fmt.Errorf("%w: %q (did you mean %q?)", ErrUnknownCategory, name, best)
	}
	return category{}, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

// Term is one parsed `category:"v1, v2"` clause element.
type Term struct {
	Category string
	Values   []string
	Exclude  bool
}

// Filter is a parsed filter clause.
type Filter struct {
	Terms []Term
}

// Empty reports whether the filter has no predicate.
func (f Filter) Empty() bool { return len(f.Terms) == 0 }

// Categories returns the distinct categories the filter mentions, in order
// of first appearance.
func (f Filter) Categories() []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range f.Terms {
		if !seen[t.Category] {
			seen[t.Category] = true
			out = append(out, t.Category)
		}
	}
	return out
}

var (
	termPattern    = regexp.MustCompile(`(-?[a-zA-Z]+) *: *"([^"]*)"`)
	valueSeparator = regexp.MustCompile(` *, *`)
)

// ParseFilter parses a filter clause: space separated terms of the form
// category:"v1, v2" (any value matches) or -category:"v" (excluded).
// An empty clause parses to an empty Filter.
func ParseFilter(clause string) (Filter, error) {
	var f Filter
	rest := termPattern.ReplaceAllString(clause, "")
	if strings.TrimSpace(rest) != "" {
		return f, fmt.Errorf("%w: unexpected %q", ErrMalformedFilter, strings.TrimSpace(rest))
	}

	for _, m := range termPattern.FindAllStringSubmatch(clause, -1) {
		name, exclude := m[1], false
		if strings.HasPrefix(name, "-") {
			name, exclude = name[1:], true
		}
		cat, err := lookupCategory(name)
		if err != nil {
			return Filter{}, err
		}

		var values []string
		for _, v := range valueSeparator.Split(strings.TrimSpace(m[2]), -1) {
			if v = normalizeName(v); v != "" {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			return Filter{}, fmt.Errorf("%w: %s has no values", ErrMalformedFilter, cat.name)
		}
		if cat.name == "gallery" {
			for _, v := range values {
				if _, err := strconv.Atoi(v); err != nil {
					return Filter{}, fmt.Errorf("%w: gallery id %q is not a number", ErrMalformedFilter, v)
				}
			}
		}
		f.Terms = append(f.Terms, Term{Category: cat.name, Values: values, Exclude: exclude})
	}
	return f, nil
}

// normalizeName is applied to every stored and compared entity name.
func normalizeName(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}

// quote quotes an SQL identifier.
func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// termSubquery returns a subquery selecting the gallery_database_id of
// every gallery matching any value of t.
func termSubquery(t Term, comp string) (string, []any) {
	cat := categories[t.Category]
	var conds []string
	var args []any

	if cat.name == "gallery" {
		for _, v := range t.Values {
			n, _ := strconv.Atoi(v)
			conds = append(conds, "g.gallery_id = ?")
			args = append(args, n)
		}
		return `SELECT g.gallery_database_id FROM "Galleries" g WHERE ` + strings.Join(conds, " OR "), args
	}

	for _, v := range t.Values {
		if cat.name == "tag" {
			if sex, name, ok := splitSex(v); ok {
				conds = append(conds, fmt.Sprintf("(e.%s%s? AND e.tag_sex = ?)", quote(cat.nameCol), comp))
				args = append(args, name, int(sex))
				continue
			}
		}
		conds = append(conds, fmt.Sprintf("e.%s%s?", quote(cat.nameCol), comp))
		args = append(args, v)
	}
	where := strings.Join(conds, " OR ")

	if cat.junction == "" {
		return fmt.Sprintf(`SELECT g.gallery_database_id FROM "Galleries" g JOIN %s e ON e.%s = g.%s WHERE %s`,
			quote(cat.table), quote(cat.idCol), quote(cat.linkCol), where), args
	}
	return fmt.Sprintf(`SELECT j.gallery FROM %s j JOIN %s e ON e.%s = j.%s WHERE %s`,
		quote(cat.junction), quote(cat.table), quote(cat.idCol), quote(cat.linkCol), where), args
}

// splitSex recognises "female:x" and "male:x" tag values.
func splitSex(v string) (gallery.Sex, string, bool) {
	if name, ok := strings.CutPrefix(v, "female:"); ok {
		return gallery.SexFemale, name, true
	}
	if name, ok := strings.CutPrefix(v, "male:"); ok {
		return gallery.SexMale, name, true
	}
	return gallery.SexNone, v, false
}

// where renders the filter as a WHERE body over the "Galleries" g alias.
// Include terms are ANDed; excluded terms subtract with NOT IN.
func (f Filter) where(comp string) (string, []any) {
	var parts []string
	var args []any
	for _, t := range f.Terms {
		sub, subArgs := termSubquery(t, comp)
		op := "IN"
		if t.Exclude {
			op = "NOT IN"
		}
		parts = append(parts, fmt.Sprintf("g.gallery_database_id %s (%s)", op, sub))
		args = append(args, subArgs...)
	}
	return strings.Join(parts, " AND "), args
}
