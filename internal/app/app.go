// Package app wires the catalog, transports, extractors, downloaders and
// session controllers together.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vmunix/galleria/internal/catalog"
	"github.com/vmunix/galleria/internal/config"
	"github.com/vmunix/galleria/internal/download"
	"github.com/vmunix/galleria/internal/events"
	"github.com/vmunix/galleria/internal/gallery"
	"github.com/vmunix/galleria/internal/logging"
	"github.com/vmunix/galleria/internal/service"
	"github.com/vmunix/galleria/internal/service/hitomi"
	"github.com/vmunix/galleria/internal/service/nhentai"
	"github.com/vmunix/galleria/internal/session"
	"github.com/vmunix/galleria/internal/transport"
)

// eventRetention bounds how long persisted session events are kept.
const eventRetention = 30 * 24 * time.Hour

// Options overrides parts of the wiring, mostly for tests.
type Options struct {
	Stdout     io.Writer
	HTTPClient *http.Client
	// BaseURLs points a site's extractor at another host.
	BaseURLs map[gallery.Source]string
	// Downloads replaces the downloader options derived from the config.
	Downloads *download.Options
}

// App owns every long-lived component of one process.
type App struct {
	cfg       *config.Config
	log       *slog.Logger
	logCloser io.Closer
	alerts    *logging.Alerts

	catalog     *catalog.Store
	bus         *events.Bus
	registry    *service.Registry
	controllers map[gallery.Source]*session.Controller
}

// New builds the application from cfg. Close must be called to flush the
// catalog.
func New(cfg *config.Config, opts Options) (*App, error) {
	alerts := &logging.Alerts{}
	base, closer := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}, opts.Stdout, alerts)

	a := &App{
		cfg:         cfg,
		log:         logging.For(base, logging.SubsystemMain, "", logging.RoleBase),
		logCloser:   closer,
		alerts:      alerts,
		registry:    service.NewRegistry(),
		controllers: make(map[gallery.Source]*session.Controller),
	}

	filter, err := cfg.GalleryFilter()
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("loading filter lists: %w", err)
	}

	store, err := catalog.Open(cfg.Database.Path, catalog.Options{CompareLike: cfg.Database.CompareLike},
		logging.For(base, logging.SubsystemDatabase, "", logging.RoleBase))
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	a.catalog = store
	if err := store.PruneEvents(context.Background(), eventRetention); err != nil {
		a.log.Warn("pruning session events failed", "error", err)
	}

	a.bus = events.NewBus(store, logging.For(base, logging.SubsystemMain, "", logging.RoleNone).With("component", "bus"))

	for _, src := range gallery.Sources {
		a.wire(base, src, filter, opts)
	}

	alerts.OnHalt(func(r slog.Record) {
		for _, c := range a.controllers {
			if c.State() != session.StateIdle {
				c.Halt()
			}
		}
	})

	a.log.Debug("application ready", "services", len(a.controllers), "catalog", cfg.Database.Path)
	return a, nil
}

// wire builds the transport, extractor, downloader and controller of src.
func (a *App) wire(base *slog.Logger, src gallery.Source, filter gallery.Filter, opts Options) {
	name := src.String()
	client := transport.New(transport.Options{
		UserAgent:       a.cfg.Network.UserAgent,
		RequestCooldown: a.cfg.Network.RequestCooldown.Duration,
		RetryCooldown:   a.cfg.Network.RetryCooldown.Duration,
		ReplyTimeout:    a.cfg.Network.ReplyTimeout.Duration,
		LivenessURL:     a.cfg.Network.LivenessURL,
		MaxRetries:      a.cfg.Network.MaxRetries,
		HTTPClient:      opts.HTTPClient,
	}, logging.For(base, logging.SubsystemDownloader, name, logging.RoleNetwork))

	client.OnDisconnect(func() { a.publishNetwork(events.EventDisconnected, name) })
	client.OnReconnect(func() { a.publishNetwork(events.EventReconnected, name) })

	extLog := logging.For(base, logging.SubsystemDownloader, name, logging.RoleExtractor)
	baseURL := opts.BaseURLs[src]
	var svc service.Service
	switch src {
	case gallery.SourceHitomi:
		var hopts []hitomi.Option
		if baseURL != "" {
			hopts = append(hopts, hitomi.WithBaseURL(baseURL))
		}
		svc = hitomi.New(client, extLog, hopts...)
	case gallery.SourceNhentai:
		var nopts []nhentai.Option
		if baseURL != "" {
			nopts = append(nopts, nhentai.WithBaseURL(baseURL))
		}
		svc = nhentai.New(client, extLog, nopts...)
	default:
		return
	}
	a.registry.Register(svc)

	dopts := download.Options{
		MinFreeBytes: a.cfg.Download.MinFreeBytes,
		MaxRestarts:  a.cfg.Download.MaxRestarts,
	}
	if opts.Downloads != nil {
		dopts = *opts.Downloads
	}
	dl := download.New(client, dopts, logging.For(base, logging.SubsystemDownloader, name, logging.RoleDownloader))

	a.controllers[src] = session.New(svc, a.catalog, dl, a.bus, session.Config{
		Root:    a.cfg.Download.Root,
		Filter:  filter,
		Formats: func(dt gallery.DownloadType) gallery.Format { return a.cfg.Format(src, dt) },
	}, logging.For(base, logging.SubsystemDownloader, name, logging.RoleBase))
}

func (a *App) publishNetwork(eventType, svc string) {
	_ = a.bus.Publish(context.Background(), &events.NetworkStateChanged{
		BaseEvent: events.NewBaseEvent(eventType, events.EntityNetwork, svc, 0),
	})
}

func (a *App) Logger() *slog.Logger { return a.log }

func (a *App) Alerts() *logging.Alerts { return a.alerts }

func (a *App) Bus() *events.Bus { return a.bus }

func (a *App) Catalog() *catalog.Store { return a.catalog }

// Controller returns the session controller of src.
func (a *App) Controller(src gallery.Source) (*session.Controller, error) {
	c, ok := a.controllers[src]
	if !ok {
		return nil, fmt.Errorf("%w: %s", gallery.ErrUnknownSource, src)
	}
	return c, nil
}

// Search runs a catalog query.
func (a *App) Search(ctx context.Context, q catalog.Query) ([]catalog.Row, error) {
	return a.catalog.Lookup(ctx, q)
}

// History returns the persisted session events since t, oldest first.
func (a *App) History(ctx context.Context, since time.Time) ([]events.Event, error) {
	if err := a.catalog.Flush(ctx); err != nil {
		return nil, err
	}
	raws, err := a.catalog.EventsSince(ctx, since)
	if err != nil {
		return nil, err
	}
	return events.DefaultRegistry().Decode(raws)
}

// Cancel cancels every running session.
func (a *App) Cancel() {
	for _, c := range a.controllers {
		c.Cancel()
	}
}

// Close stops the bus so no event reaches a closed sink, then flushes and
// closes the catalog and the log file.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.bus.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.catalog.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("closing catalog: %w", err))
	}
	if err := a.logCloser.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
