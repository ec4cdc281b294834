package session

import (
	"context"
	"fmt"

	"github.com/vmunix/galleria/internal/gallery"
	"github.com/vmunix/galleria/internal/service"
)

// fileCursor walks the files of one gallery and owns the URL of the
// current file, so it can be rebuilt after the service refreshes its
// signing parameters.
type fileCursor struct {
	svc service.Service
	m   *gallery.Metadata
	pos int
	url string
}

func newFileCursor(svc service.Service, m *gallery.Metadata) *fileCursor {
	return &fileCursor{svc: svc, m: m}
}

// Current returns the file under the cursor, or nil past the end.
func (c *fileCursor) Current() *gallery.File {
	if c.pos >= len(c.m.Files) {
		return nil
	}
	return &c.m.Files[c.pos]
}

func (c *fileCursor) Advance() {
	c.pos++
	c.url = ""
}

// URL returns the remote URL of the current file, building it on first use.
func (c *fileCursor) URL(ctx context.Context) (string, error) {
	if c.url != "" {
		return c.url, nil
	}
	f := c.Current()
	if f == nil {
		return "", fmt.Errorf("cursor exhausted")
	}
	u, err := c.svc.BuildFileURL(ctx, c.m, f)
	if err != nil {
		return "", err
	}
	c.url = u
	f.URL = u
	return u, nil
}

// Regenerate refreshes the service and rebuilds the current URL. It
// reports false when the service has nothing to refresh.
func (c *fileCursor) Regenerate(ctx context.Context) (string, bool, error) {
	r, ok := c.svc.(service.Refresher)
	if !ok {
		return "", false, nil
	}
	if err := r.Refresh(ctx); err != nil {
		return "", true, fmt.Errorf("refreshing %s: %w", c.svc.Source(), err)
	}
	c.url = ""
	u, err := c.URL(ctx)
	return u, true, err
}
