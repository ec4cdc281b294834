package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/galleria/internal/gallery"
	"github.com/vmunix/galleria/internal/session"
)

// ErrDuplicateSource is returned when two jobs target the same site.
var ErrDuplicateSource = errors.New("more than one job for the same source")

// Job is one session request for one site.
type Job struct {
	Source  gallery.Source
	Request session.Request
}

// Result pairs a job with its outcome. Summary is nil when the session
// could not start.
type Result struct {
	Job     Job
	Summary *session.Summary
	Err     error
}

// RunSessions runs jobs concurrently, one session per site, and blocks
// until all of them end. A failing session does not stop the others.
func (a *App) RunSessions(ctx context.Context, jobs []Job) ([]Result, error) {
	seen := make(map[gallery.Source]bool, len(jobs))
	for _, j := range jobs {
		if seen[j.Source] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSource, j.Source)
		}
		seen[j.Source] = true
		if _, err := a.Controller(j.Source); err != nil {
			return nil, err
		}
	}

	results := make([]Result, len(jobs))
	var g errgroup.Group
	for i, j := range jobs {
		c := a.controllers[j.Source]
		g.Go(func() error {
			sum, err := c.Run(ctx, j.Request)
			results[i] = Result{Job: j, Summary: sum, Err: err}
			if err != nil {
				a.log.Warn("session failed", "service", j.Source, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	// Pending catalog writes are committed before results are reported.
	if err := a.catalog.Flush(ctx); err != nil && ctx.Err() == nil {
		return results, fmt.Errorf("flushing catalog: %w", err)
	}
	return results, nil
}
