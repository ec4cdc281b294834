// Package service defines the contract between the session controller and
// the per-site extractors.
package service

//go:generate mockgen -destination=mocks/service.go -package=mocks . Service,Iterator,Refresher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/vmunix/galleria/internal/gallery"
)

// ErrInvalidItem is returned by ResolveItem for items the site does not
// know or that cannot be interpreted for the download type.
var ErrInvalidItem = errors.New("invalid item")

// ErrUnsupportedType is returned by ResolveItem for download types the
// site has no listing for.
var ErrUnsupportedType = errors.New("download type not supported by service")

// Iterator yields the galleries of one item in listing order. Next
// returns false once the item is exhausted.
type Iterator interface {
	Next(ctx context.Context) (gallery.Ref, bool, error)
	// Len is the total number of galleries, or -1 before the first page.
	Len() int
}

// Service extracts galleries from one site.
type Service interface {
	Source() gallery.Source
	// Header is sent with every request for this site.
	Header() http.Header
	// Normalize rewrites a user supplied item into the site's spelling.
	Normalize(item string, dt gallery.DownloadType) string
	ResolveItem(ctx context.Context, item string, dt gallery.DownloadType, order gallery.Order) (Iterator, error)
	FetchMetadata(ctx context.Context, ref gallery.Ref) (*gallery.Metadata, error)
	BuildFileURL(ctx context.Context, m *gallery.Metadata, f *gallery.File) (string, error)
}

// Refresher is implemented by services whose file URLs depend on signing
// parameters that rotate. Refresh reloads them.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Registry maps sources to services.
type Registry struct {
	services map[gallery.Source]Service
}

func NewRegistry(services ...Service) *Registry {
	r := &Registry{services: make(map[gallery.Source]Service)}
	for _, s := range services {
		r.Register(s)
	}
	return r
}

// Register adds s, replacing any service for the same source.
func (r *Registry) Register(s Service) {
	r.services[s.Source()] = s
}

// Get returns the service for source.
func (r *Registry) Get(source gallery.Source) (Service, error) {
	s, ok := r.services[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", gallery.ErrUnknownSource, source)
	}
	return s, nil
}

// Sources lists registered sources in enum order.
func (r *Registry) Sources() []gallery.Source {
	out := make([]gallery.Source, 0, len(r.services))
	for s := range r.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SliceIterator iterates over a fixed list of refs.
type SliceIterator struct {
	refs []gallery.Ref
	pos  int
}

func NewSliceIterator(refs ...gallery.Ref) *SliceIterator {
	return &SliceIterator{refs: refs}
}

func (it *SliceIterator) Next(context.Context) (gallery.Ref, bool, error) {
	if it.pos >= len(it.refs) {
		return gallery.Ref{}, false, nil
	}
	r := it.refs[it.pos]
	it.pos++
	return r, true, nil
}

func (it *SliceIterator) Len() int { return len(it.refs) }
