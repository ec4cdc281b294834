package session_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vmunix/galleria/internal/download"
	"github.com/vmunix/galleria/internal/gallery"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ref(id int) gallery.Ref {
	return gallery.Ref{Source: gallery.SourceHitomi, ID: id}
}

func newMeta(id int, language string, files int) *gallery.Metadata {
	m := &gallery.Metadata{
		Source:     gallery.SourceHitomi,
		ID:         id,
		Title:      fmt.Sprintf("Gallery %d", id),
		Artists:    []string{"someone"},
		Groups:     []string{gallery.Placeholder},
		Series:     []string{gallery.Placeholder},
		Characters: []string{gallery.Placeholder},
		Tags:       []gallery.Tag{{Name: "x", Sex: gallery.SexFemale}},
		Language:   language,
		Type:       "doujinshi",
		UploadDate: time.Date(2023, 4, 5, 0, 0, 0, 0, time.UTC),
		Pages:      files,
	}
	for i := range files {
		m.Files = append(m.Files, gallery.File{Name: fmt.Sprintf("%03d", i+1), Ext: "webp"})
	}
	m.SplitTitle()
	return m
}

func fileURL(_ context.Context, m *gallery.Metadata, f *gallery.File) (string, error) {
	return fmt.Sprintf("https://cdn.test/%d/%s.%s", m.ID, f.Name, f.Ext), nil
}

// fakeCatalog records lookups and saves.
type fakeCatalog struct {
	mu      sync.Mutex
	present map[int]bool
	lookups []int
	saved   []int
}

func (c *fakeCatalog) Exists(_ context.Context, _ gallery.Source, id int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups = append(c.lookups, id)
	return c.present[id], nil
}

func (c *fakeCatalog) SaveGallery(_ context.Context, m *gallery.Metadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved = append(c.saved, m.ID)
	return nil
}

// fakeFetcher pretends to download every file. errs maps URLs to the
// error their first fetch returns; hook runs before each fetch.
type fakeFetcher struct {
	mu    sync.Mutex
	urls  []string
	paths []string
	errs  map[string]error
	hook  func(ctx context.Context)
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, path string, _ http.Header, row download.Row) (download.Result, error) {
	if f.hook != nil {
		f.hook(ctx)
	}
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.paths = append(f.paths, path)
	err, failing := f.errs[url]
	delete(f.errs, url)
	f.mu.Unlock()

	if ctx.Err() != nil {
		return download.Result{}, ctx.Err()
	}
	if failing {
		row.SetStatus(download.StatusFailed)
		return download.Result{}, err
	}
	row.SetSize(100)
	row.SetStatus(download.StatusCompleted)
	return download.Result{Path: path, Size: 100, Bytes: 100}, nil
}

func (f *fakeFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}
