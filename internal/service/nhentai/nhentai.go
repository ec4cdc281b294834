// Package nhentai extracts galleries from nhentai.net.
package nhentai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/vmunix/galleria/internal/gallery"
	"github.com/vmunix/galleria/internal/service"
	"github.com/vmunix/galleria/internal/transport"
)

const (
	DefaultBaseURL = "https://nhentai.net"
	referer        = "https://www.nhentai.net"
	accept         = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"
)

var categories = map[gallery.DownloadType]string{
	gallery.TypeArtist:    "artist",
	gallery.TypeCharacter: "character",
	gallery.TypeGroup:     "group",
	gallery.TypeParody:    "parody",
	gallery.TypeSeries:    "parody",
	gallery.TypeType:      "category",
	gallery.TypeTag:       "tag",
}

// Service implements service.Service for nhentai.net.
type Service struct {
	client  *transport.Client
	baseURL string
	header  http.Header
	log     *slog.Logger
}

var _ service.Service = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithBaseURL points page and API requests at baseURL.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) { s.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// New creates an nhentai service.
func New(client *transport.Client, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		client:  client,
		baseURL: DefaultBaseURL,
		log:     log,
		header: http.Header{
			"Referer": {referer},
			"Accept":  {accept},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Source() gallery.Source { return gallery.SourceNhentai }

func (s *Service) Header() http.Header { return s.header.Clone() }

// Normalize lowercases item and replaces spaces with dashes, the way
// nhentai spells category slugs.
func (s *Service) Normalize(item string, _ gallery.DownloadType) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(item)), " ", "-")
}

func orderSuffix(o gallery.Order) string {
	switch o {
	case gallery.OrderToday:
		return "/popular-today"
	case gallery.OrderWeek:
		return "/popular-week"
	case gallery.OrderMonth:
		return "/popular-month"
	case gallery.OrderAllTime:
		return "/popular"
	}
	return ""
}

// pageURL returns the listing URL of item without the page parameter.
func (s *Service) pageURL(item string, dt gallery.DownloadType, order gallery.Order) (string, error) {
	cat, ok := categories[dt]
	if !ok {
		return "", fmt.Errorf("%w: %s", service.ErrUnsupportedType, dt)
	}
	return fmt.Sprintf("%s/%s/%s%s", s.baseURL, cat, url.PathEscape(item), orderSuffix(order)), nil
}

// ResolveItem returns a paging iterator over the item's listing. Gallery
// ID items are looked up on their gallery page to learn the CDN server.
func (s *Service) ResolveItem(ctx context.Context, item string, dt gallery.DownloadType, order gallery.Order) (service.Iterator, error) {
	if dt == gallery.TypeGalleryID {
		id, err := strconv.Atoi(strings.TrimSpace(item))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: %q is not a gallery id", service.ErrInvalidItem, item)
		}
		ref, err := s.lookupGallery(ctx, id)
		if err != nil {
			return nil, err
		}
		return service.NewSliceIterator(ref), nil
	}
	if order == gallery.OrderYear {
		s.log.Debug("nhentai has no yearly listing, using recent", "item", item)
	}

	base, err := s.pageURL(item, dt, order)
	if err != nil {
		return nil, err
	}
	it := &pageIterator{svc: s, item: item, base: base, total: -1}
	// The first page decides whether the item exists at all.
	if err := it.fetch(ctx); err != nil {
		return nil, err
	}
	return it, nil
}

func (s *Service) lookupGallery(ctx context.Context, id int) (gallery.Ref, error) {
	u := fmt.Sprintf("%s/g/%d/", s.baseURL, id)
	body, err := s.get(ctx, u)
	if err != nil {
		if transport.CodeOf(err).Invalid() {
			return gallery.Ref{}, fmt.Errorf("%w: gallery %d: %w", service.ErrInvalidItem, id, err)
		}
		return gallery.Ref{}, err
	}
	server, err := parseGalleryPage(body, id, u)
	if err != nil {
		return gallery.Ref{}, err
	}
	return gallery.Ref{Source: gallery.SourceNhentai, ID: id, Server: server}, nil
}

// pageIterator walks listing pages until nhentai reports no results.
type pageIterator struct {
	svc   *Service
	item  string
	base  string
	page  int
	total int
	refs  []gallery.Ref
	done  bool
}

func (it *pageIterator) Len() int { return it.total }

func (it *pageIterator) Next(ctx context.Context) (gallery.Ref, bool, error) {
	for len(it.refs) == 0 {
		if it.done {
			return gallery.Ref{}, false, nil
		}
		if err := it.fetch(ctx); err != nil {
			return gallery.Ref{}, false, err
		}
	}
	ref := it.refs[0]
	it.refs = it.refs[1:]
	return ref, true, nil
}

func (it *pageIterator) fetch(ctx context.Context) error {
	it.page++
	u := fmt.Sprintf("%s?page=%d", it.base, it.page)
	body, err := it.svc.get(ctx, u)
	if err != nil {
		if it.page == 1 && transport.CodeOf(err).Invalid() {
			return fmt.Errorf("%w: %q: %w", service.ErrInvalidItem, it.item, err)
		}
		return err
	}
	p, err := parseListing(body, u)
	if err != nil {
		return err
	}
	if p.noResults || len(p.refs) == 0 {
		it.done = true
		if it.total < 0 {
			it.total = 0
		}
		return nil
	}
	if it.total < 0 {
		it.total = p.total
		it.svc.log.Info("galleries found", "item", it.item, "count", p.total)
	}
	it.refs = p.refs
	return nil
}

// get fetches u through the retry policy and returns the body.
func (s *Service) get(ctx context.Context, u string) ([]byte, error) {
	var body []byte
	err := s.client.Retry(ctx, func(ctx context.Context) error {
		resp, err := s.client.Get(ctx, u, s.header)
		if err != nil {
			return err
		}
		body = resp.Body
		return nil
	})
	return body, err
}

// BuildFileURL returns the CDN URL of page f.
func (s *Service) BuildFileURL(_ context.Context, m *gallery.Metadata, f *gallery.File) (string, error) {
	if m.MediaID == 0 {
		return "", &gallery.AssumptionError{Source: gallery.SourceNhentai, GalleryID: m.ID, Field: "media_id"}
	}
	host := "i"
	if m.Server > 0 {
		host += strconv.Itoa(m.Server)
	}
	return fmt.Sprintf("https://%s.nhentai.net/galleries/%d/%s.%s", host, m.MediaID, f.Name, f.Ext), nil
}
