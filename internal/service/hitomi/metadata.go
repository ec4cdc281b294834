package hitomi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vmunix/galleria/internal/gallery"
)

var (
	jsObject = regexp.MustCompile(`\{[\s\S]*\}`)
	fileExt  = regexp.MustCompile(`^(.*)\.([A-Za-z0-9]+)$`)
)

// flexBool decodes the 0/1, "1"/"" and true/false spellings hitomi uses.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "", "0", "false", "null":
		*b = false
	default:
		*b = true
	}
	return nil
}

// flexInt decodes numbers that may be quoted.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	v, err := strconv.Atoi(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*n = flexInt(v)
	return nil
}

type fileJSON struct {
	Name    string   `json:"name"`
	Hash    string   `json:"hash"`
	HasWebP flexBool `json:"haswebp"`
	HasAVIF flexBool `json:"hasavif"`
}

type tagJSON struct {
	Tag    string   `json:"tag"`
	Female flexBool `json:"female"`
	Male   flexBool `json:"male"`
}

// FetchMetadata downloads and validates galleries/{id}.js.
func (s *Service) FetchMetadata(ctx context.Context, ref gallery.Ref) (*gallery.Metadata, error) {
	u := fmt.Sprintf("%s/galleries/%d.js", s.baseURL, ref.ID)
	body, err := s.get(ctx, u)
	if err != nil {
		return nil, err
	}
	m, err := parseGalleryJS(body, ref.ID, u)
	if err != nil {
		return nil, err
	}
	s.log.Debug("metadata parsed", "gallery_id", m.ID, "pages", m.Pages, "type", m.Type)
	return m, nil
}

// galleryParser decodes one gallery document field by field, turning the
// first violated expectation into an AssumptionError.
type galleryParser struct {
	id     int
	url    string
	fields map[string]json.RawMessage
	err    error
}

func (p *galleryParser) fail(field string, err error) {
	if p.err == nil {
		p.err = &gallery.AssumptionError{Source: gallery.SourceHitomi, GalleryID: p.id, URL: p.url, Field: field, Err: err}
	}
}

// required decodes a key that must be present. A null value leaves v
// untouched and reports false.
func (p *galleryParser) required(key string, v any) bool {
	if p.err != nil {
		return false
	}
	raw, ok := p.fields[key]
	if !ok {
		p.fail(key, fmt.Errorf("missing"))
		return false
	}
	if bytes.Equal(raw, []byte("null")) {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		p.fail(key, err)
		return false
	}
	return true
}

func (p *galleryParser) optional(key string, v any) bool {
	if _, ok := p.fields[key]; !ok {
		return false
	}
	return p.required(key, v)
}

// names decodes a list of objects and extracts one string member.
func (p *galleryParser) names(key, member string, required bool) []string {
	var list []map[string]json.RawMessage
	var ok bool
	if required {
		ok = p.required(key, &list)
	} else {
		ok = p.optional(key, &list)
	}
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		var name string
		if err := json.Unmarshal(item[member], &name); err != nil || name == "" {
			p.fail(key, fmt.Errorf("entry without %q", member))
			return nil
		}
		out = append(out, name)
	}
	return out
}

func parseGalleryJS(body []byte, id int, u string) (*gallery.Metadata, error) {
	p := &galleryParser{id: id, url: u}

	obj := jsObject.Find(body)
	if obj == nil {
		p.fail("galleryinfo", fmt.Errorf("no JSON object in response"))
		return nil, p.err
	}
	if err := json.Unmarshal(obj, &p.fields); err != nil {
		p.fail("galleryinfo", err)
		return nil, p.err
	}

	m := &gallery.Metadata{Source: gallery.SourceHitomi}

	var gid flexInt
	if !p.required("id", &gid) && p.err == nil {
		p.fail("id", fmt.Errorf("null"))
	}
	m.ID = int(gid)
	if p.err == nil && m.ID != p.id {
		p.fail("id", fmt.Errorf("document is for gallery %d", m.ID))
	}
	p.required("title", &m.Title)
	p.required("japanese_title", &m.JapaneseTitle)
	m.Artists = p.names("artists", "artist", true)
	m.Groups = p.names("groups", "group", true)
	if !p.required("type", &m.Type) && p.err == nil {
		p.fail("type", fmt.Errorf("null"))
	}
	p.required("language", &m.Language)
	m.Series = p.names("parodys", "parody", false)
	m.Characters = p.names("characters", "character", true)

	var tags []tagJSON
	p.required("tags", &tags)
	for _, t := range tags {
		tag := gallery.Tag{Name: t.Tag, Sex: gallery.SexNone}
		switch {
		case bool(t.Female):
			tag.Sex = gallery.SexFemale
		case bool(t.Male):
			tag.Sex = gallery.SexMale
		}
		m.Tags = append(m.Tags, tag)
	}

	var date string
	if p.required("date", &date) {
		d, err := parseDate(date)
		if err != nil {
			p.fail("date", err)
		}
		m.UploadDate = d
	} else if p.err == nil {
		p.fail("date", fmt.Errorf("null"))
	}

	var video string
	if p.optional("videofilename", &video) && video != "" {
		f, err := splitName(video)
		if err != nil {
			p.fail("videofilename", err)
		}
		f.IsVideo = true
		m.Files = []gallery.File{f}
	} else {
		var files []fileJSON
		if !p.required("files", &files) && p.err == nil {
			p.fail("files", fmt.Errorf("null"))
		}
		for _, fj := range files {
			f, err := splitName(fj.Name)
			if err != nil {
				p.fail("files", err)
				break
			}
			f.Hash = fj.Hash
			f.HasWebP = bool(fj.HasWebP)
			f.HasAVIF = bool(fj.HasAVIF)
			m.Files = append(m.Files, f)
		}
	}
	if p.err != nil {
		return nil, p.err
	}

	m.Pages = len(m.Files)
	if strings.EqualFold(m.Type, "anime") {
		m.Pages = 1
	}
	m.SplitTitle()
	m.FillEmpty()
	return m, nil
}

// parseDate reads "2006-01-02 15:04:05-07" style timestamps.
func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05-07", "2006-01-02 15:04:05-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func splitName(name string) (gallery.File, error) {
	m := fileExt.FindStringSubmatch(name)
	if m == nil {
		return gallery.File{}, fmt.Errorf("file name %q has no extension", name)
	}
	return gallery.File{Name: m[1], Ext: m[2]}, nil
}
