// Package session runs download sessions: it resolves the requested
// items into galleries, filters and deduplicates them, downloads their
// files and records them in the catalog.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/vmunix/galleria/internal/download"
	"github.com/vmunix/galleria/internal/events"
	"github.com/vmunix/galleria/internal/gallery"
	"github.com/vmunix/galleria/internal/progress"
	"github.com/vmunix/galleria/internal/service"
	"github.com/vmunix/galleria/internal/transport"
)

var (
	ErrBusy             = errors.New("session already running")
	ErrNoItems          = errors.New("no items requested")
	errGalleryAbandoned = errors.New("gallery abandoned")
)

// Catalog is the part of the catalog store a session needs.
type Catalog interface {
	Exists(ctx context.Context, source gallery.Source, id int) (bool, error)
	SaveGallery(ctx context.Context, m *gallery.Metadata) error
}

// Fetcher downloads one file. *download.Downloader implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url, path string, header http.Header, row download.Row) (download.Result, error)
}

// Publisher receives session events. *events.Bus implements it.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Config holds the user settings a controller applies.
type Config struct {
	Root    string
	Filter  gallery.Filter
	Formats func(gallery.DownloadType) gallery.Format
}

// Request is one submitted download.
type Request struct {
	Items string // comma separated
	Type  gallery.DownloadType
	Order gallery.Order
}

// Controller runs the sessions of one service, one at a time.
type Controller struct {
	svc     service.Service
	catalog Catalog
	fetcher Fetcher
	bus     Publisher
	cfg     Config
	clock   clockwork.Clock
	log     *slog.Logger

	machine *machine

	mu     sync.Mutex
	cancel context.CancelFunc
	halted bool
	sum    *Summary
	items  *progress.ItemsTable
	files  *progress.FilesTable
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the clock used to time sessions.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// New creates an idle controller. bus may be nil.
func New(svc service.Service, catalog Catalog, fetcher Fetcher, bus Publisher, cfg Config, log *slog.Logger, opts ...Option) *Controller {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Formats == nil {
		cfg.Formats = func(gallery.DownloadType) gallery.Format { return gallery.Format{} }
	}
	c := &Controller{
		svc:     svc,
		catalog: catalog,
		fetcher: fetcher,
		bus:     bus,
		cfg:     cfg,
		clock:   clockwork.NewRealClock(),
		log:     log,
		items:   progress.NewItemsTable(nil),
		files:   progress.NewFilesTable(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.machine = &machine{onIdle: c.enterIdle}
	return c
}

func (c *Controller) State() State { return c.machine.State() }

func (c *Controller) Source() gallery.Source { return c.svc.Source() }

// Items returns the items table of the current or last session.
func (c *Controller) Items() *progress.ItemsTable {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items
}

// Files returns the files table of the gallery being downloaded.
func (c *Controller) Files() *progress.FilesTable {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.files
}

// Cancel aborts the running session. Remaining items are marked aborted.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Halt cancels the running session because of an error that makes
// continuing unsafe.
func (c *Controller) Halt() {
	c.mu.Lock()
	if c.cancel != nil {
		c.halted = true
	}
	c.mu.Unlock()
	c.Cancel()
}

// Run executes req and blocks until the session ends. A cancelled session
// returns its partial summary and no error.
func (c *Controller) Run(ctx context.Context, req Request) (*Summary, error) {
	if err := c.machine.fire(EventSubmit); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBusy, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	c.cancel = cancel
	c.halted = false
	c.mu.Unlock()

	sum := &Summary{SessionID: uuid.NewString(), Service: c.svc.Source().String()}
	log := c.log.With("session_id", sum.SessionID)

	items := gallery.ParseItems(req.Items)
	if len(items) == 0 {
		_ = c.machine.fire(EventStop)
		return nil, ErrNoItems
	}

	c.publish(ctx, &events.SessionStarted{
		BaseEvent:    events.NewBaseEvent(events.EventSessionStarted, events.EntitySession, sum.Service, 0),
		SessionID:    sum.SessionID,
		DownloadType: req.Type.String(),
		Items:        items,
	})

	table := progress.NewItemsTable(func(i int, row progress.ItemRow) {
		e := &events.ItemStatusChanged{
			BaseEvent: events.NewBaseEvent(events.EventItemStatus, events.EntityItem, sum.Service, int64(i)),
			Item:      row.Name,
			Status:    row.Status.String(),
		}
		c.publish(ctx, e)
	})
	for _, item := range items {
		table.Add(item, req.Type.String())
	}

	c.mu.Lock()
	c.sum = sum
	c.items = table
	c.files = progress.NewFilesTable(nil)
	c.mu.Unlock()

	log.Info("session started", "items", len(items), "type", req.Type, "order", req.Order)

	if err := c.machine.fire(EventInitialized); err != nil {
		return nil, err
	}

	start := c.clock.Now()
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		table.SetStatus(i, progress.ItemDownloading)
		err := c.runItem(ctx, log, item, req, sum)
		switch {
		case err == nil:
			table.SetStatus(i, progress.ItemCompleted)
			sum.ItemsCompleted++
			log.Info("finished item download", "item", item)
		case ctx.Err() != nil:
		default:
			table.SetStatus(i, progress.ItemInvalid)
			sum.ItemsInvalid++
			log.Warn("item invalid", "item", item, "error", err)
		}
	}
	sum.Elapsed = c.clock.Since(start)

	if ctx.Err() != nil {
		sum.Cancelled = true
		sum.ItemsAborted = table.AbortUnfinished()
	}
	if err := c.machine.fire(EventStop); err != nil {
		return sum, err
	}
	return sum, nil
}

// enterIdle is the Idle entry action.
func (c *Controller) enterIdle(prev State) {
	c.mu.Lock()
	sum := c.sum
	c.sum = nil
	c.cancel = nil
	halted := c.halted
	c.mu.Unlock()

	if prev != StateDownloading || sum == nil {
		c.log.Debug("session torn down", "from", prev)
		return
	}
	sum.Halted = halted
	c.log.Info("session ended",
		"session_id", sum.SessionID,
		"cancelled", sum.Cancelled,
		"items_completed", sum.ItemsCompleted,
		"items_invalid", sum.ItemsInvalid,
		"galleries_downloaded", sum.GalleriesDownloaded,
		"galleries_filtered", sum.GalleriesFiltered,
		"galleries_already", sum.GalleriesAlready,
		"files_downloaded", sum.FilesDownloaded,
		"bytes", sum.TotalBytes,
		"elapsed", sum.Elapsed)
	c.publish(context.Background(), &events.SessionEnded{
		BaseEvent: events.NewBaseEvent(events.EventSessionEnded, events.EntitySession, sum.Service, 0),
		SessionID: sum.SessionID,
		Cancelled: sum.Cancelled,
		Report:    sum.Report(),
	})
}

func (c *Controller) publish(ctx context.Context, e events.Event) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(context.WithoutCancel(ctx), e); err != nil {
		c.log.Warn("failed to publish event", "type", e.EventType(), "error", err)
	}
}

// runItem downloads every gallery item resolves to.
func (c *Controller) runItem(ctx context.Context, log *slog.Logger, item string, req Request, sum *Summary) error {
	name := c.svc.Normalize(item, req.Type)
	it, err := c.svc.ResolveItem(ctx, name, req.Type, req.Order)
	if err != nil {
		return err
	}
	log = log.With("item", name)
	log.Debug("item resolved", "galleries", it.Len())

	locItem := name
	if req.Type == gallery.TypeGalleryID {
		locItem = "gallery"
	}
	for {
		ref, ok, err := it.Next(ctx)
		if err != nil {
			return fmt.Errorf("listing %q: %w", name, err)
		}
		if !ok {
			return nil
		}
		if err := c.runGallery(ctx, log, ref, locItem, req.Type, sum); err != nil {
			return err
		}
	}
}

func (c *Controller) skipGallery(ctx context.Context, ref gallery.Ref, reason string) {
	c.publish(ctx, &events.GallerySkipped{
		BaseEvent: events.NewBaseEvent(events.EventGallerySkipped, events.EntityGallery, ref.Source.String(), int64(ref.ID)),
		Reason:    reason,
	})
}

// runGallery processes one gallery. Cancellation and an explicit gallery
// ID the site does not know are returned; every other failure is counted
// and the session moves on.
func (c *Controller) runGallery(ctx context.Context, log *slog.Logger, ref gallery.Ref, item string, dt gallery.DownloadType, sum *Summary) error {
	log = log.With("gallery_id", ref.ID)

	m, err := c.svc.FetchMetadata(ctx, ref)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if dt == gallery.TypeGalleryID && transport.CodeOf(err).Invalid() {
			return fmt.Errorf("%w: gallery %d: %w", service.ErrInvalidItem, ref.ID, err)
		}
		sum.GalleriesFailed++
		var aerr *gallery.AssumptionError
		if errors.As(err, &aerr) {
			log.Warn("gallery metadata rejected", "field", aerr.Field, "url", aerr.URL, "error", err)
		} else {
			log.Warn("fetching gallery metadata failed", "code", transport.CodeOf(err), "error", err)
		}
		c.skipGallery(ctx, ref, err.Error())
		return nil
	}

	if reason, rejected := c.cfg.Filter.Check(m); rejected {
		sum.GalleriesFiltered++
		log.Info("gallery filtered out", "reason", reason)
		c.publish(ctx, &events.GalleryFiltered{
			BaseEvent: events.NewBaseEvent(events.EventGalleryFiltered, events.EntityGallery, m.Source.String(), int64(m.ID)),
			Reason:    string(reason),
		})
		return nil
	}

	exists, err := c.catalog.Exists(ctx, m.Source, m.ID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sum.GalleriesFailed++
		log.Warn("catalog lookup failed", "error", err)
		return nil
	}
	if exists {
		sum.GalleriesAlready++
		log.Info("gallery already downloaded")
		c.skipGallery(ctx, ref, "already downloaded")
		return nil
	}

	if err := m.Locate(c.cfg.Root, item, c.cfg.Formats(dt)); err != nil {
		sum.GalleriesFailed++
		log.Warn("locating gallery failed", "error", err)
		c.skipGallery(ctx, ref, err.Error())
		return nil
	}

	if err := c.downloadFiles(ctx, log, m, sum); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sum.GalleriesFailed++
		c.skipGallery(ctx, ref, err.Error())
		return nil
	}

	if err := c.catalog.SaveGallery(ctx, m); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sum.GalleriesFailed++
		log.Warn("saving gallery failed", "error", err)
		return nil
	}
	sum.GalleriesDownloaded++
	log.Info("finished gallery download", "location", m.Location, "files", len(m.Files))
	c.publish(ctx, &events.GalleryCompleted{
		BaseEvent: events.NewBaseEvent(events.EventGalleryCompleted, events.EntityGallery, m.Source.String(), int64(m.ID)),
		Title:     m.Title,
		Location:  m.Location,
		Files:     len(m.Files),
	})
	return nil
}

// downloadFiles fetches the files of m in order. The first failed file
// abandons the gallery.
func (c *Controller) downloadFiles(ctx context.Context, log *slog.Logger, m *gallery.Metadata, sum *Summary) error {
	c.mu.Lock()
	files := c.files
	c.mu.Unlock()
	files.Reset()

	header := c.svc.Header()
	cur := newFileCursor(c.svc, m)
	for ; cur.Current() != nil; cur.Advance() {
		f := cur.Current()
		row := files.Add(f.Filename)
		res, err := c.fetchFile(ctx, log, cur, m.Path(f), header, row)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sum.FilesFailed++
			log.Warn("file download failed", "file", f.Filename, "code", transport.CodeOf(err), "error", err)
			return fmt.Errorf("%w: %s: %w", errGalleryAbandoned, f.Filename, err)
		}
		if res.Existing {
			sum.FilesAlready++
		} else {
			sum.FilesDownloaded++
			sum.TotalBytes += res.Bytes
		}
		c.publish(ctx, &events.FileCompleted{
			BaseEvent: events.NewBaseEvent(events.EventFileCompleted, events.EntityFile, m.Source.String(), int64(m.ID)),
			Filename:  f.Filename,
			Bytes:     res.Bytes,
			Existing:  res.Existing,
		})
	}
	return nil
}

// fetchFile downloads the cursor's current file. When the site rejects
// the URL and the service can refresh its signing parameters, the URL is
// regenerated and the file tried once more.
func (c *Controller) fetchFile(ctx context.Context, log *slog.Logger, cur *fileCursor, path string, header http.Header, row download.Row) (download.Result, error) {
	u, err := cur.URL(ctx)
	if err != nil {
		return download.Result{}, err
	}
	res, err := c.fetcher.Fetch(ctx, u, path, header, row)
	if err == nil || !transport.CodeOf(err).Invalid() {
		return res, err
	}

	u, refreshed, rerr := cur.Regenerate(ctx)
	if !refreshed {
		return res, err
	}
	if rerr != nil {
		return res, errors.Join(err, rerr)
	}
	log.Info("file url regenerated", "file", cur.Current().Filename)
	return c.fetcher.Fetch(ctx, u, path, header, row)
}
