package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/galleria/internal/app"
	"github.com/vmunix/galleria/internal/catalog"
	"github.com/vmunix/galleria/internal/events"
	"github.com/vmunix/galleria/internal/gallery"
	"github.com/vmunix/galleria/internal/session"
)

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, jsonOutput = "", false
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBuildJobs(t *testing.T) {
	jobs, err := buildJobs([]string{"hitomi", "nhentai"}, "Tag(s)", "week", []string{"a, b", "c"})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, gallery.SourceHitomi, jobs[0].Source)
	assert.Equal(t, gallery.SourceNhentai, jobs[1].Source)
	assert.Equal(t, session.Request{Items: "a, b,c", Type: gallery.TypeTag, Order: gallery.OrderWeek}, jobs[0].Request)

	_, err = buildJobs([]string{"exhentai"}, "tag", "recent", []string{"a"})
	assert.ErrorIs(t, err, gallery.ErrUnknownSource)

	_, err = buildJobs([]string{"hitomi"}, "artst", "recent", []string{"a"})
	assert.ErrorIs(t, err, gallery.ErrUnknownDownloadType)

	_, err = buildJobs([]string{"hitomi"}, "tag", "recent", []string{" , "})
	assert.ErrorIs(t, err, session.ErrNoItems)
}

func TestColumns(t *testing.T) {
	rows := []catalog.Row{
		{"gallery_id": int64(1), "title": "a", "tag": "x", "artist": "y"},
	}
	assert.Equal(t, []string{"title", "gallery_id", "artist", "tag"}, columns([]string{"title", "gallery_id", "location"}, rows))
	assert.Equal(t, []string{"artist", "gallery_id", "tag", "title"}, columns([]string{"*"}, rows))
}

func TestPrintEvent(t *testing.T) {
	var out bytes.Buffer
	printEvent(&out, &events.GalleryCompleted{
		BaseEvent: events.NewBaseEvent(events.EventGalleryCompleted, events.EntityGallery, "hitomi", 42),
		Title:     "Title",
		Files:     3,
	})
	printEvent(&out, &events.FileCompleted{
		BaseEvent: events.NewBaseEvent(events.EventFileCompleted, events.EntityFile, "hitomi", 42),
		Filename:  "01.webp",
		Bytes:     2_000_000,
	})
	printEvent(&out, &events.ItemStatusChanged{
		BaseEvent: events.NewBaseEvent(events.EventItemStatus, events.EntityItem, "hitomi", 0),
		Item:      "foo",
		Status:    "downloading",
	})
	printEvent(&out, &events.NetworkStateChanged{
		BaseEvent: events.NewBaseEvent(events.EventDisconnected, events.EntityNetwork, "nhentai", 0),
	})

	assert.Equal(t, "[hitomi] gallery 42 done: Title (3 files)\n"+
		"[hitomi]   01.webp 2.0 MB\n"+
		"[nhentai] network lost, waiting to reconnect\n", out.String())
}

func TestPrintResult(t *testing.T) {
	var out bytes.Buffer
	printResult(&out, app.Result{
		Job:     app.Job{Source: gallery.SourceHitomi},
		Summary: &session.Summary{Cancelled: true, ItemsAborted: 1, Elapsed: 2 * time.Second},
	})
	s := out.String()
	assert.Contains(t, s, "== hitomi ==")
	assert.Contains(t, s, "Session cancelled.")
	assert.Contains(t, s, "Downloaded 0 B in 2 seconds:")
	assert.Contains(t, s, "1 items aborted.")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "galleria dev\n", out)
}

func TestInitThenConfigCheck(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "galleria", "config.toml")

	out, err := execute(t, "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	_, err = execute(t, "init", path)
	assert.ErrorContains(t, err, "already exists")

	out, err = execute(t, "config", "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid!")
	assert.Contains(t, out, "hitomi, nhentai")

	out, err = execute(t, "config", "show", path)
	require.NoError(t, err)
	assert.Contains(t, out, "[download]")
}

func TestConfigCheck_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"loud\"\n"), 0644))

	out, err := execute(t, "config", "check", path)
	require.Error(t, err)
	assert.Contains(t, out, "Validation errors:")
	assert.Contains(t, out, "download.root: required")
}

func TestSearch(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalog.db")

	store, err := catalog.Open(dbPath, catalog.Options{}, nil)
	require.NoError(t, err)
	m := &gallery.Metadata{
		Source:     gallery.SourceHitomi,
		ID:         7,
		Title:      "Seven",
		Artists:    []string{"someone"},
		Language:   "english",
		Type:       "manga",
		Pages:      1,
		UploadDate: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
		Location:   "/downloads/seven",
	}
	m.FillEmpty()
	require.NoError(t, store.SaveGallery(context.Background(), m))
	require.NoError(t, store.Close(context.Background()))

	cfgPath := filepath.Join(dir, "config.toml")
	cfg := "[database]\npath = \"" + filepath.ToSlash(dbPath) + "\"\n[download]\nroot = \"" + filepath.ToSlash(dir) + "\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	out, err := execute(t, "search", "--config", cfgPath, `artist:"someone"`)
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 galleries")
	assert.Contains(t, out, "7 │ Seven │ /downloads/seven")

	out, err = execute(t, "search", "--config", cfgPath, `artist:"nobody"`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "No galleries found"))
}

func TestHistory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalog.db")

	store, err := catalog.Open(dbPath, catalog.Options{}, nil)
	require.NoError(t, err)
	require.NoError(t, store.AppendEvent(&events.GalleryCompleted{
		BaseEvent: events.NewBaseEvent(events.EventGalleryCompleted, events.EntityGallery, "hitomi", 42),
		Title:     "Title",
		Files:     3,
	}))
	require.NoError(t, store.Close(context.Background()))

	cfgPath := filepath.Join(dir, "config.toml")
	cfg := "[database]\npath = \"" + filepath.ToSlash(dbPath) + "\"\n[download]\nroot = \"" + filepath.ToSlash(dir) + "\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	out, err := execute(t, "history", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "[hitomi] gallery 42 done: Title (3 files)")

	out, err = execute(t, "history", "--config", cfgPath, "--service", "nhentai")
	require.NoError(t, err)
	assert.Equal(t, "No events recorded\n", out)
}
