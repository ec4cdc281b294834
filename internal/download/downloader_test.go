package download

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileServer serves content at /file.jpg with range support and counts GETs.
func fileServer(t *testing.T, content []byte) (*httptest.Server, *atomic.Int32, *[]string) {
	t.Helper()
	var gets atomic.Int32
	var mu sync.Mutex
	var ranges []string
	mux := http.NewServeMux()
	mux.HandleFunc("/file.jpg", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gets.Add(1)
			mu.Lock()
			ranges = append(ranges, r.Header.Get("Range"))
			mu.Unlock()
		}
		http.ServeContent(w, r, "file.jpg", time.Time{}, bytes.NewReader(content))
	})
	mux.HandleFunc("/alive", func(http.ResponseWriter, *http.Request) {})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &gets, &ranges
}

func TestFetch_Downloads(t *testing.T) {
	content := payload(100 * 1024)
	srv, gets, _ := fileServer(t, content)
	d, fs := newTestDownloader(t, srv.URL+"/alive")
	row := &recordingRow{}

	res, err := d.Fetch(context.Background(), srv.URL+"/file.jpg", "/dl/item/1/001.jpg", nil, row)
	require.NoError(t, err)

	assert.False(t, res.Existing)
	assert.Equal(t, int64(len(content)), res.Size)
	assert.Equal(t, int64(len(content)), res.Bytes)
	assert.Equal(t, int32(1), gets.Load())

	got, err := afero.ReadFile(fs, "/dl/item/1/001.jpg")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	assert.Equal(t, []FileStatus{StatusPending, StatusDownloading, StatusCompleted}, row.statuses)
	assert.Equal(t, int64(len(content)), row.size)
	assert.True(t, row.monotone())
	assert.Equal(t, int64(len(content)), row.transferred[len(row.transferred)-1])
	assert.Positive(t, row.speeds[len(row.speeds)-1])
}

func TestFetch_AlreadyExists(t *testing.T) {
	content := payload(2048)
	srv, gets, _ := fileServer(t, content)
	d, fs := newTestDownloader(t, srv.URL+"/alive")
	require.NoError(t, afero.WriteFile(fs, "/dl/a.jpg", content, 0o644))
	row := &recordingRow{}

	res, err := d.Fetch(context.Background(), srv.URL+"/file.jpg", "/dl/a.jpg", nil, row)
	require.NoError(t, err)

	assert.True(t, res.Existing)
	assert.Zero(t, gets.Load())
	assert.Equal(t, StatusCompleted, row.lastStatus())
}

func TestFetch_ResumesPartialFile(t *testing.T) {
	content := payload(10000)
	srv, gets, ranges := fileServer(t, content)
	d, fs := newTestDownloader(t, srv.URL+"/alive")
	require.NoError(t, afero.WriteFile(fs, "/dl/a.jpg", content[:4000], 0o644))

	res, err := d.Fetch(context.Background(), srv.URL+"/file.jpg", "/dl/a.jpg", nil, &recordingRow{})
	require.NoError(t, err)

	assert.Equal(t, int32(1), gets.Load())
	assert.Equal(t, []string{"bytes=4000-"}, *ranges)
	assert.Equal(t, int64(6000), res.Bytes)

	got, err := afero.ReadFile(fs, "/dl/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestFetch_OversizedLocalFileRestarts(t *testing.T) {
	content := payload(1000)
	srv, _, ranges := fileServer(t, content)
	d, fs := newTestDownloader(t, srv.URL+"/alive")
	require.NoError(t, afero.WriteFile(fs, "/dl/a.jpg", payload(5000), 0o644))

	_, err := d.Fetch(context.Background(), srv.URL+"/file.jpg", "/dl/a.jpg", nil, &recordingRow{})
	require.NoError(t, err)

	assert.Equal(t, []string{""}, *ranges)
	got, err := afero.ReadFile(fs, "/dl/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestFetch_NotEnoughSpace(t *testing.T) {
	content := payload(5000)
	srv, gets, _ := fileServer(t, content)
	d, _ := newTestDownloader(t, srv.URL+"/alive")
	d.free = func(string) (int64, error) { return 5000, nil }
	row := &recordingRow{}

	_, err := d.Fetch(context.Background(), srv.URL+"/file.jpg", "/dl/a.jpg", nil, row)
	assert.ErrorIs(t, err, ErrNotEnoughSpace)
	assert.Zero(t, gets.Load())
	assert.Equal(t, StatusFailed, row.lastStatus())
}

func TestFetch_RejectsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "index.html", time.Time{}, bytes.NewReader([]byte("<html>no</html>")))
	}))
	t.Cleanup(srv.Close)
	d, fs := newTestDownloader(t, srv.URL)

	_, err := d.Fetch(context.Background(), srv.URL+"/x.jpg", "/dl/x.jpg", nil, &recordingRow{})
	assert.ErrorIs(t, err, ErrUnexpectedContent)

	exists, _ := afero.Exists(fs, "/dl/x.jpg")
	assert.False(t, exists)
}

// shortServer advertises size bytes on HEAD but sends only short bytes on
// the first n GETs.
func shortServer(t *testing.T, content []byte, short int, n int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(content)))
			return
		}
		if gets.Add(1) <= n {
			_, _ = w.Write(content[:short])
			return
		}
		_, _ = w.Write(content)
	}))
	t.Cleanup(srv.Close)
	return srv, &gets
}

func TestFetch_SizeMismatchRestarts(t *testing.T) {
	content := payload(3000)
	srv, gets := shortServer(t, content, 1000, 1)
	d, fs := newTestDownloader(t, srv.URL)

	row := &recordingRow{}

	_, err := d.Fetch(context.Background(), srv.URL+"/f", "/dl/f.jpg", nil, row)
	require.NoError(t, err)

	assert.Equal(t, int32(2), gets.Load())
	got, err := afero.ReadFile(fs, "/dl/f.jpg")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// the short attempt is not added to the fresh one
	require.NotEmpty(t, row.transferred)
	assert.Contains(t, row.transferred, int64(1000))
	assert.Equal(t, int64(3000), row.transferred[len(row.transferred)-1])
}

func TestFetch_SizeMismatchGivesUp(t *testing.T) {
	content := payload(3000)
	srv, gets := shortServer(t, content, 1000, 100)
	d, _ := newTestDownloader(t, srv.URL)
	row := &recordingRow{}

	_, err := d.Fetch(context.Background(), srv.URL+"/f", "/dl/f.jpg", nil, row)
	assert.ErrorIs(t, err, ErrSizeMismatch)
	assert.Equal(t, int32(3), gets.Load())
	assert.Equal(t, StatusFailed, row.lastStatus())
}

func TestFetch_UnknownSizeAccepted(t *testing.T) {
	content := payload(1500)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(content)
	}))
	t.Cleanup(srv.Close)
	d, fs := newTestDownloader(t, srv.URL)
	d.free = func(string) (int64, error) { return 0, nil }
	row := &recordingRow{}

	res, err := d.Fetch(context.Background(), srv.URL+"/f.png", "/dl/f.png", nil, row)
	require.NoError(t, err)

	assert.Equal(t, int64(-1), res.Size)
	assert.Equal(t, int64(-1), row.size)
	got, err := afero.ReadFile(fs, "/dl/f.png")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestFetch_ResumesAfterStall(t *testing.T) {
	content := payload(64 * 1024)
	half := len(content) / 2

	var gets atomic.Int32
	var mu sync.Mutex
	var ranges []string
	mux := http.NewServeMux()
	mux.HandleFunc("/file.jpg", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && gets.Add(1) == 1 {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Header().Set("Content-Length", strconv.Itoa(len(content)))
			_, _ = w.Write(content[:half])
			w.(http.Flusher).Flush()
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
			return
		}
		if r.Method == http.MethodGet {
			mu.Lock()
			ranges = append(ranges, r.Header.Get("Range"))
			mu.Unlock()
		}
		http.ServeContent(w, r, "file.jpg", time.Time{}, bytes.NewReader(content))
	})
	mux.HandleFunc("/alive", func(http.ResponseWriter, *http.Request) {})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	d, fs := newTestDownloader(t, srv.URL+"/alive")
	var disconnects, reconnects atomic.Int32
	d.client.OnDisconnect(func() { disconnects.Add(1) })
	d.client.OnReconnect(func() { reconnects.Add(1) })
	row := &recordingRow{}

	res, err := d.Fetch(context.Background(), srv.URL+"/file.jpg", "/dl/file.jpg", nil, row)
	require.NoError(t, err)

	assert.Equal(t, int32(2), gets.Load())
	assert.Equal(t, int32(1), disconnects.Load())
	assert.Equal(t, int32(1), reconnects.Load())
	require.Len(t, ranges, 1)
	assert.Regexp(t, `^bytes=\d+-$`, ranges[0])
	assert.NotEqual(t, "bytes=0-", ranges[0])

	got, err := afero.ReadFile(fs, "/dl/file.jpg")
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, int64(len(content)), res.Bytes)

	assert.True(t, row.monotone())
	assert.Equal(t, int64(len(content)), row.transferred[len(row.transferred)-1])
	assert.Contains(t, row.speeds, float64(0))
}

func TestFetch_CancelledContext(t *testing.T) {
	content := payload(100)
	srv, _, _ := fileServer(t, content)
	d, _ := newTestDownloader(t, srv.URL+"/alive")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	row := &recordingRow{}

	_, err := d.Fetch(ctx, srv.URL+"/file.jpg", "/dl/a.jpg", nil, row)
	assert.Error(t, err)
	assert.Equal(t, StatusFailed, row.lastStatus())
}
