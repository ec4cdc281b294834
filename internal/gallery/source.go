package gallery

import (
	"fmt"
	"strings"

	"github.com/hbollon/go-edlib"
)

// Source identifies the site a gallery was fetched from.
type Source int

const (
	SourceUnknown Source = iota
	SourceHitomi
	SourceNhentai
)

// Sources lists every supported site.
var Sources = []Source{SourceHitomi, SourceNhentai}

func (s Source) String() string {
	switch s {
	case SourceHitomi:
		return "hitomi"
	case SourceNhentai:
		return "nhentai"
	default:
		return "none"
	}
}

// ParseSource parses a case-insensitive site name.
func ParseSource(name string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hitomi":
		return SourceHitomi, nil
	case "nhentai":
		return SourceNhentai, nil
	}
	return SourceUnknown, fmt.Errorf("%w: %q", ErrUnknownSource, name)
}

// DownloadType selects how the items of a request are interpreted.
type DownloadType int

const (
	TypeArtist DownloadType = iota + 1
	TypeCharacter
	TypeGalleryID
	TypeGroup
	TypeSeries
	TypeParody
	TypeType
	TypeTag
)

var downloadTypeLabels = map[DownloadType]string{
	TypeArtist:    "Artist(s)",
	TypeCharacter: "Character(s)",
	TypeGalleryID: "Gallery ID(s)",
	TypeGroup:     "Group(s)",
	TypeSeries:    "Series(s)",
	TypeParody:    "Parody(s)",
	TypeType:      "Type(s)",
	TypeTag:       "Tag(s)",
}

var downloadTypeNames = map[string]DownloadType{
	"artist":    TypeArtist,
	"character": TypeCharacter,
	"id":        TypeGalleryID,
	"gallery":   TypeGalleryID,
	"group":     TypeGroup,
	"series":    TypeSeries,
	"parody":    TypeParody,
	"type":      TypeType,
	"tag":       TypeTag,
}

// String returns the label used in destination format tables.
func (t DownloadType) String() string {
	if l, ok := downloadTypeLabels[t]; ok {
		return l
	}
	return "Unknown"
}

// ParseDownloadType accepts either a label ("Tag(s)") or a short name ("tag").
func ParseDownloadType(s string) (DownloadType, error) {
	s = strings.TrimSpace(s)
	for t, l := range downloadTypeLabels {
		if strings.EqualFold(l, s) {
			return t, nil
		}
	}
	if t, ok := downloadTypeNames[strings.ToLower(s)]; ok {
		return t, nil
	}
	names := make([]string, 0, len(downloadTypeNames))
	for n := range downloadTypeNames {
		names = append(names, n)
	}
	return 0, unknownWithSuggestion(ErrUnknownDownloadType, s, names)
}

// Order selects the listing order for resolved items.
type Order int

const (
	OrderRecent Order = iota
	OrderToday
	OrderWeek
	OrderMonth
	OrderYear
	OrderAllTime
)

func (o Order) String() string {
	switch o {
	case OrderToday:
		return "Today"
	case OrderWeek:
		return "Week"
	case OrderMonth:
		return "Month"
	case OrderYear:
		return "Year"
	case OrderAllTime:
		return "All time"
	default:
		return "Recent"
	}
}

// ParseOrder parses an order label. "Date added" is an alias for Recent.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "recent", "date added":
		return OrderRecent, nil
	case "today":
		return OrderToday, nil
	case "week":
		return OrderWeek, nil
	case "month":
		return OrderMonth, nil
	case "year":
		return OrderYear, nil
	case "all time", "alltime", "all":
		return OrderAllTime, nil
	}
	return OrderRecent, unknownWithSuggestion(ErrUnknownOrder, s,
		[]string{"recent", "today", "week", "month", "year", "all time"})
}

// Suggest returns the candidate closest to got, or "" if none is close enough.
func Suggest(got string, candidates []string) string {
	best, err := edlib.FuzzySearchThreshold(strings.ToLower(got), candidates, 0.5, edlib.Levenshtein)
	if err != nil {
		return ""
	}
	return best
}

func unknownWithSuggestion(sentinel error, got string, candidates []string) error {
	if best := Suggest(got, candidates); best != "" {
		return fmt.Errorf("%w: %q (did you mean %q?)", sentinel, got, best)
	}
	return fmt.Errorf("%w: %q", sentinel, got)
}
