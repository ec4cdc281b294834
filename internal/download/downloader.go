// Package download fetches gallery files to disk with size verification
// and byte-range resume across reconnects.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/vmunix/galleria/internal/transport"
)

// Default limits.
const (
	DefaultMinFreeBytes = 1024
	DefaultMaxRestarts  = 3
)

// Row receives the observable state of one file download.
type Row interface {
	SetStatus(FileStatus)
	SetSize(int64)
	SetTransferred(int64)
	SetSpeed(bytesPerSec float64)
}

// Result describes a finished file.
type Result struct {
	Path     string
	Size     int64 // -1 when the remote size was unknown
	Bytes    int64 // bytes written by this fetch
	Existing bool  // file was already on disk
}

// Options configures a Downloader.
type Options struct {
	MinFreeBytes int64
	MaxRestarts  int
	Fs           afero.Fs
	FreeSpace    func(path string) (int64, error)
	Clock        clockwork.Clock
}

// Downloader fetches one file at a time through a transport.Client.
type Downloader struct {
	client *transport.Client
	fs     afero.Fs
	free   func(string) (int64, error)
	clock  clockwork.Clock
	opts   Options
	log    *slog.Logger

	mu     sync.Mutex
	active *stopwatch
	row    Row
}

// New creates a Downloader and subscribes it to the client's
// disconnect and reconnect hooks.
func New(client *transport.Client, opts Options, log *slog.Logger) *Downloader {
	if log == nil {
		log = slog.Default()
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.FreeSpace == nil {
		opts.FreeSpace = FreeSpace
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.MinFreeBytes == 0 {
		opts.MinFreeBytes = DefaultMinFreeBytes
	}
	if opts.MaxRestarts == 0 {
		opts.MaxRestarts = DefaultMaxRestarts
	}
	d := &Downloader{
		client: client,
		fs:     opts.Fs,
		free:   opts.FreeSpace,
		clock:  opts.Clock,
		opts:   opts,
		log:    log,
	}
	client.OnDisconnect(d.pause)
	client.OnReconnect(d.resume)
	return d
}

func (d *Downloader) pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil {
		return
	}
	d.active.Pause()
	if d.row != nil {
		d.row.SetSpeed(0)
	}
}

func (d *Downloader) resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active != nil {
		d.active.Resume()
	}
}

func (d *Downloader) setActive(sw *stopwatch, row Row) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active, d.row = sw, row
}

// fileState drives a Row through the file status machine.
type fileState struct {
	row    Row
	status FileStatus
	log    *slog.Logger
}

func (s *fileState) to(next FileStatus) {
	if !s.status.CanTransitionTo(next) {
		s.log.Debug("ignoring file status change", "from", s.status, "to", next)
		return
	}
	s.status = next
	s.row.SetStatus(next)
}

// Fetch downloads url to path. header is sent with every request. A file
// already on disk with the remote size is left alone; a shorter one is
// resumed with a byte range.
func (d *Downloader) Fetch(ctx context.Context, url, path string, header http.Header, row Row) (Result, error) {
	log := d.log.With("file", filepath.Base(path))
	state := &fileState{row: row, status: StatusPending, log: log}
	row.SetStatus(StatusPending)

	res, err := d.fetch(ctx, url, path, header, state, log)
	if err != nil {
		state.to(StatusFailed)
		return res, err
	}
	state.to(StatusCompleted)
	return res, nil
}

func (d *Downloader) fetch(ctx context.Context, url, path string, header http.Header, state *fileState, log *slog.Logger) (Result, error) {
	res := Result{Path: path, Size: -1}

	err := d.client.Retry(ctx, func(ctx context.Context) error {
		resp, err := d.client.Head(ctx, url, header)
		if err != nil {
			return err
		}
		res.Size = resp.ContentLength
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("head %s: %w", url, err)
	}
	if res.Size < 0 {
		log.Warn("remote size unknown", "url", url)
	}
	state.row.SetSize(res.Size)

	if err := d.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return res, fmt.Errorf("create directory: %w", err)
	}
	if err := d.checkSpace(filepath.Dir(path), res.Size); err != nil {
		return res, err
	}

	local, err := d.localSize(path)
	if err != nil {
		return res, err
	}
	if res.Size >= 0 && local == res.Size {
		log.Info("file already exists", "path", path)
		res.Existing = true
		return res, nil
	}
	offset := int64(0)
	if res.Size > 0 && local > 0 && local < res.Size {
		log.Info("resuming partial file", "path", path, "offset", local)
		offset = local
	}

	sw := newStopwatch(d.clock)
	d.setActive(sw, state.row)
	defer d.setActive(nil, nil)

	restarts := 0
	for {
		state.to(StatusDownloading)
		sw.Start()
		written, err := d.transfer(ctx, url, path, header, offset, state.row, sw)
		res.Bytes += written
		if err != nil {
			return res, err
		}

		final, err := d.localSize(path)
		if err != nil {
			return res, err
		}
		if res.Size < 0 {
			log.Warn("cannot verify file size", "url", url, "path", path, "bytes", final)
			return res, nil
		}
		if final == res.Size {
			log.Info("file downloaded", "path", path, "size", humanize.IBytes(uint64(final)))
			return res, nil
		}

		restarts++
		if restarts > d.opts.MaxRestarts {
			return res, fmt.Errorf("%w: %s is %d bytes, expected %d", ErrSizeMismatch, path, final, res.Size)
		}
		log.Warn("size mismatch, downloading again", "path", path, "got", final, "want", res.Size, "restart", restarts)
		offset = 0
	}
}

// transfer runs the GET, re-issuing it with a byte range from the
// current file size after every reconnect. It returns the bytes written.
func (d *Downloader) transfer(ctx context.Context, url, path string, header http.Header, offset int64, row Row, sw *stopwatch) (int64, error) {
	var prog tracker
	prog.rebase(offset)
	var written int64
	attempt := 0

	err := d.client.Retry(ctx, func(ctx context.Context) error {
		start := offset
		if attempt > 0 {
			n, err := d.localSize(path)
			if err != nil {
				return err
			}
			start = max(n, 0)
		}
		attempt++

		h := header.Clone()
		if h == nil {
			h = http.Header{}
		}
		if start > 0 {
			h.Set("Range", fmt.Sprintf("bytes=%d-", start))
		}

		var f afero.File
		defer func() {
			if f != nil {
				_ = f.Close()
			}
		}()
		open := func(resp *transport.Response) (io.Writer, error) {
			if resp.ContentType() == "text/html" {
				return nil, fmt.Errorf("%w: %s", ErrUnexpectedContent, resp.ContentType())
			}
			flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
			base := int64(0)
			if start > 0 && resp.Status == http.StatusPartialContent {
				flag = os.O_CREATE | os.O_WRONLY | os.O_APPEND
				base = start
			}
			prog.rebase(base)
			var err error
			if f, err = d.fs.OpenFile(path, flag, 0o644); err != nil {
				return nil, fmt.Errorf("open %s: %w", path, err)
			}
			return &countingWriter{w: f, n: &written}, nil
		}
		progress := func(received, _ int64) {
			row.SetTransferred(prog.observe(received))
			row.SetSpeed(speed(written, sw.Elapsed()))
		}

		_, err := d.client.Get(ctx, url, h, transport.WithSink(open), transport.WithProgress(progress))
		return err
	})
	if err != nil {
		return written, fmt.Errorf("get %s: %w", url, err)
	}
	return written, nil
}

type countingWriter struct {
	w io.Writer
	n *int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	*c.n += int64(n)
	return n, err
}

func (d *Downloader) checkSpace(dir string, size int64) error {
	if size < 0 {
		return nil
	}
	free, err := d.free(dir)
	if err != nil {
		d.log.Warn("cannot read free space", "dir", dir, "error", err)
		return nil
	}
	if free < size+d.opts.MinFreeBytes {
		return fmt.Errorf("%w: %s free in %s, need %s", ErrNotEnoughSpace,
			humanize.IBytes(uint64(max(free, 0))), dir, humanize.IBytes(uint64(size+d.opts.MinFreeBytes)))
	}
	return nil
}

// localSize returns the size of path, or -1 if it does not exist.
func (d *Downloader) localSize(path string) (int64, error) {
	fi, err := d.fs.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return fi.Size(), nil
}
