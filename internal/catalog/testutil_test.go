package catalog

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/vmunix/galleria/internal/gallery"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"), opts, testLogger())
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func newMeta(source gallery.Source, id int, tags ...gallery.Tag) *gallery.Metadata {
	return &gallery.Metadata{
		Source:     source,
		ID:         id,
		Title:      "Title",
		Type:       "Manga",
		Language:   "English",
		Artists:    []string{"Artist"},
		Groups:     []string{gallery.Placeholder},
		Series:     []string{gallery.Placeholder},
		Characters: []string{gallery.Placeholder},
		Tags:       tags,
		Pages:      1,
		UploadDate: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
		Location:   "/downloads/" + source.String(),
	}
}

func tag(name string) gallery.Tag { return gallery.Tag{Name: name, Sex: gallery.SexNone} }

// galleryIDs extracts gallery_id values from rows.
func galleryIDs(rows []Row) []int64 {
	var ids []int64
	for _, r := range rows {
		ids = append(ids, r["gallery_id"].(int64))
	}
	return ids
}
