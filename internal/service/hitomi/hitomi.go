// Package hitomi extracts galleries from hitomi.la.
package hitomi

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/vmunix/galleria/internal/gallery"
	"github.com/vmunix/galleria/internal/service"
	"github.com/vmunix/galleria/internal/transport"
)

const (
	DefaultBaseURL = "https://ltn.hitomi.la"
	referer        = "https://hitomi.la/"
	accept         = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"
)

// areas maps download types to nozomi index directories.
var areas = map[gallery.DownloadType]string{
	gallery.TypeArtist:    "artist",
	gallery.TypeCharacter: "character",
	gallery.TypeGroup:     "group",
	gallery.TypeSeries:    "series",
	gallery.TypeParody:    "series",
	gallery.TypeType:      "type",
	gallery.TypeTag:       "tag",
}

// Service implements service.Service for hitomi.la.
type Service struct {
	client  *transport.Client
	baseURL string
	header  http.Header
	log     *slog.Logger

	mu sync.RWMutex
	gg *signer
}

var (
	_ service.Service   = (*Service)(nil)
	_ service.Refresher = (*Service)(nil)
)

// Option configures a Service.
type Option func(*Service)

// WithBaseURL points index, metadata and gg.js requests at baseURL.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) { s.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// New creates a hitomi service.
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

func (s *Service) Source() gallery.Source { return gallery.SourceHitomi }

func (s *Service) Header() http.Header { return s.header.Clone() }

// Normalize lowercases item and expands the f: and m: tag shorthands.
func (s *Service) Normalize(item string, dt gallery.DownloadType) string {
	item = strings.ToLower(strings.TrimSpace(item))
	if dt == gallery.TypeTag {
		if rest, ok := strings.CutPrefix(item, "f:"); ok {
			item = "female:" + rest
		} else if rest, ok := strings.CutPrefix(item, "m:"); ok {
			item = "male:" + rest
		}
	}
	return item
}

// nozomiURL returns the index address for item.
func (s *Service) nozomiURL(item string, dt gallery.DownloadType, order gallery.Order) (string, error) {
	area, ok := areas[dt]
	if !ok {
		return "", fmt.Errorf("%w: %s", service.ErrUnsupportedType, dt)
	}
	var b strings.Builder
	b.WriteString(s.baseURL)
	b.WriteString("/" + area + "/")
	if p := popular(order); p != "" {
		b.WriteString("popular/" + p + "/")
	}
	b.WriteString(url.PathEscape(item))
	b.WriteString("-all.nozomi")
	return b.String(), nil
}

func popular(o gallery.Order) string {
	switch o {
	case gallery.OrderToday:
		return "today"
	case gallery.OrderWeek:
		return "week"
	case gallery.OrderMonth:
		return "month"
	case gallery.OrderYear:
		return "year"
	}
	return ""
}

// ResolveItem fetches the nozomi index for item. Gallery ID items resolve
// to themselves without a request.
func (s *Service) ResolveItem(ctx context.Context, item string, dt gallery.DownloadType, order gallery.Order) (service.Iterator, error) {
	if dt == gallery.TypeGalleryID {
		id, err := parseID(item)
		if err != nil {
			return nil, err
		}
		return service.NewSliceIterator(gallery.Ref{Source: gallery.SourceHitomi, ID: id}), nil
	}
	if order == gallery.OrderAllTime {
		s.log.Debug("hitomi has no all-time listing, using recent", "item", item)
	}

	u, err := s.nozomiURL(item, dt, order)
	if err != nil {
		return nil, err
	}
	body, err := s.get(ctx, u)
	if err != nil {
		if transport.CodeOf(err).Invalid() {
			return nil, fmt.Errorf("%w: %q: %w", service.ErrInvalidItem, item, err)
		}
		return nil, err
	}

	ids := decodeNozomi(body)
	s.log.Info("galleries found", "item", item, "count", len(ids))
	refs := make([]gallery.Ref, len(ids))
	for i, id := range ids {
		refs[i] = gallery.Ref{Source: gallery.SourceHitomi, ID: id}
	}
	return service.NewSliceIterator(refs...), nil
}

// decodeNozomi reads big-endian signed 32-bit gallery IDs. A trailing
// partial word is ignored.
func decodeNozomi(b []byte) []int {
	ids := make([]int, 0, len(b)/4)
	for i := 0; i+4 <= len(b); i += 4 {
		ids = append(ids, int(int32(binary.BigEndian.Uint32(b[i:i+4]))))
	}
	return ids
}

func parseID(item string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(item))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q is not a gallery id", service.ErrInvalidItem, item)
	}
	return id, nil
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
