package nhentai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vmunix/galleria/internal/gallery"
)

var pageExt = map[string]string{
	"j": "jpg",
	"p": "png",
	"g": "gif",
	"w": "webp",
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

type galleryJSON struct {
	ID      *flexInt `json:"id"`
	MediaID *flexInt `json:"media_id"`
	Title   *struct {
		English  string `json:"english"`
		Japanese string `json:"japanese"`
		Pretty   string `json:"pretty"`
	} `json:"title"`
	Images *struct {
		Pages []struct {
			T string `json:"t"`
		} `json:"pages"`
	} `json:"images"`
	Tags []struct {
		Type string `json:"type"`
		Name string `json:"name"`
	} `json:"tags"`
	UploadDate *int64 `json:"upload_date"`
}

// FetchMetadata downloads and validates api/gallery/{id}.
func (s *Service) FetchMetadata(ctx context.Context, ref gallery.Ref) (*gallery.Metadata, error) {
	u := fmt.Sprintf("%s/api/gallery/%d", s.baseURL, ref.ID)
	body, err := s.get(ctx, u)
	if err != nil {
		return nil, err
	}
	m, err := parseGallery(body, ref.ID, u)
	if err != nil {
		return nil, err
	}
	m.Server = ref.Server
	s.log.Debug("metadata parsed", "gallery_id", m.ID, "media_id", m.MediaID, "pages", m.Pages)
	return m, nil
}

func parseGallery(body []byte, id int, u string) (*gallery.Metadata, error) {
	fail := func(field string, err error) error {
		return &gallery.AssumptionError{Source: gallery.SourceNhentai, GalleryID: id, URL: u, Field: field, Err: err}
	}

	var g galleryJSON
	if err := json.Unmarshal(body, &g); err != nil {
		return nil, fail("document", err)
	}
	switch {
	case g.ID == nil:
		return nil, fail("id", nil)
	case g.MediaID == nil:
		return nil, fail("media_id", nil)
	case g.Title == nil:
		return nil, fail("title", nil)
	case g.Images == nil || len(g.Images.Pages) == 0:
		return nil, fail("images.pages", nil)
	case g.UploadDate == nil:
		return nil, fail("upload_date", nil)
	}

	m := &gallery.Metadata{
		Source:        gallery.SourceNhentai,
		ID:            int(*g.ID),
		MediaID:       int(*g.MediaID),
		Title:         g.Title.English,
		JapaneseTitle: g.Title.Japanese,
		UploadDate:    time.Unix(*g.UploadDate, 0).UTC(),
	}
	if m.Title == "" {
		m.Title = g.Title.Pretty
	}

	for _, t := range g.Tags {
		switch t.Type {
		case "artist":
			m.Artists = append(m.Artists, t.Name)
		case "group":
			m.Groups = append(m.Groups, t.Name)
		case "parody":
			m.Series = append(m.Series, t.Name)
		case "character":
			m.Characters = append(m.Characters, t.Name)
		case "tag":
			m.Tags = append(m.Tags, gallery.Tag{Name: t.Name, Sex: gallery.SexNone})
		case "category":
			if m.Type == "" {
				m.Type = t.Name
			}
		case "language":
			if t.Name != "translated" && m.Language == "" {
				m.Language = t.Name
			}
		}
	}
	if m.Type == "" {
		return nil, fail("category tag", nil)
	}
	if m.Language == "" {
		return nil, fail("language tag", nil)
	}

	for i, p := range g.Images.Pages {
		ext, ok := pageExt[p.T]
		if !ok {
			return nil, fail("images.pages.t", fmt.Errorf("page %d: unknown type %q", i+1, p.T))
		}
		m.Files = append(m.Files, gallery.File{Name: strconv.Itoa(i + 1), Ext: ext})
	}
	m.Pages = len(m.Files)

	m.SplitTitle()
	m.FillEmpty()
	return m, nil
}
