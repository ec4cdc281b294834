// Package gallery holds the data model shared by the extractors, the
// downloader and the catalog: gallery metadata, file entries, the request
// enums and the destination templating.
package gallery

import (
	"strings"
	"time"
)

// Placeholder is stored for metadata lists the upstream site left empty.
const Placeholder = "---"

// Ref identifies a gallery on its source site. Server is the nhentai CDN
// shard number and is zero when unknown.
type Ref struct {
	Source Source
	ID     int
	Server int
}

// Sex qualifies a tag. Hitomi tags may be female or male; others have none.
type Sex int

const (
	SexNone Sex = iota - 1
	SexFemale
	SexMale
)

func (s Sex) String() string {
	switch s {
	case SexFemale:
		return "female"
	case SexMale:
		return "male"
	default:
		return ""
	}
}

// Tag is a gallery tag with an optional sex qualifier.
type Tag struct {
	Name string
	Sex  Sex
}

// String renders the tag the way filters and hitomi item names spell it.
func (t Tag) String() string {
	if t.Sex == SexNone {
		return t.Name
	}
	return t.Sex.String() + ":" + t.Name
}

// File is one downloadable file of a gallery.
type File struct {
	Name     string // remote base name without extension
	Ext      string
	Hash     string
	HasWebP  bool
	HasAVIF  bool
	IsVideo  bool
	Filename string // formatted local filename, set by Locate
	URL      string // resolved remote URL, set by the session cursor
}

// Metadata is the validated description of one gallery.
type Metadata struct {
	Source          Source
	ID              int
	MediaID         int // nhentai only
	Server          int // nhentai only
	Title           string
	JapaneseTitle   string
	OriginalTitle   string
	TranslatedTitle string
	Artists         []string
	Groups          []string
	Series          []string
	Characters      []string
	Tags            []Tag
	Language        string
	Type            string
	UploadDate      time.Time
	Pages           int
	Location        string
	Files           []File
}

// Ref returns the reference that identifies m.
func (m *Metadata) Ref() Ref {
	return Ref{Source: m.Source, ID: m.ID, Server: m.Server}
}

// SplitTitle fills OriginalTitle and TranslatedTitle from Title. Titles
// of the form "original | translated" are split; others get NA markers.
func (m *Metadata) SplitTitle() {
	if orig, trans, ok := strings.Cut(m.Title, "|"); ok {
		m.OriginalTitle = strings.TrimSpace(orig)
		m.TranslatedTitle = strings.TrimSpace(trans)
		return
	}
	m.OriginalTitle = "original_title(NA)"
	m.TranslatedTitle = "translated_title(NA)"
}

// FillEmpty replaces empty lists with the placeholder entry.
func (m *Metadata) FillEmpty() {
	for _, list := range []*[]string{&m.Artists, &m.Groups, &m.Series, &m.Characters} {
		if len(*list) == 0 {
			*list = []string{Placeholder}
		}
	}
	if len(m.Tags) == 0 {
		m.Tags = []Tag{{Name: Placeholder, Sex: SexNone}}
	}
}

// TagNames returns the tags in their filter spelling.
func (m *Metadata) TagNames() []string {
	names := make([]string, len(m.Tags))
	for i, t := range m.Tags {
		names[i] = t.String()
	}
	return names
}

// Ready reports whether m carries everything the downloader needs.
func (m *Metadata) Ready() bool {
	return m.ID > 0 && m.Location != ""
}
