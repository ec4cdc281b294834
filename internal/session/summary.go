package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Summary accumulates the outcome of one session.
type Summary struct {
	SessionID string
	Service   string

	ItemsCompleted int
	ItemsInvalid   int
	ItemsAborted   int

	GalleriesDownloaded int
	GalleriesFiltered   int
	GalleriesAlready    int
	GalleriesFailed     int

	FilesDownloaded int
	FilesAlready    int
	FilesFailed     int

	TotalBytes int64
	Elapsed    time.Duration
	Cancelled  bool
	Halted     bool
}

// Report renders the summary for the user.
func (s *Summary) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Downloaded %s in %s:\n", humanize.Bytes(uint64(max(s.TotalBytes, 0))), formatElapsed(s.Elapsed))
	fmt.Fprintf(&b, "%d items completed.\n", s.ItemsCompleted)
	fmt.Fprintf(&b, "%d items invalid.\n", s.ItemsInvalid)
	if s.ItemsAborted > 0 {
		fmt.Fprintf(&b, "%d items aborted.\n", s.ItemsAborted)
	}
	fmt.Fprintf(&b, "%d galleries downloaded.\n", s.GalleriesDownloaded)
	fmt.Fprintf(&b, "%d galleries filtered out.\n", s.GalleriesFiltered)
	fmt.Fprintf(&b, "%d galleries already downloaded.\n", s.GalleriesAlready)
	if s.GalleriesFailed > 0 {
		fmt.Fprintf(&b, "%d galleries failed.\n", s.GalleriesFailed)
	}
	fmt.Fprintf(&b, "%d files downloaded.\n", s.FilesDownloaded)
	fmt.Fprintf(&b, "%d files already downloaded.", s.FilesAlready)
	if s.FilesFailed > 0 {
		fmt.Fprintf(&b, "\n%d files failed.", s.FilesFailed)
	}
	return b.String()
}

// formatElapsed spells d as its non-zero day, hour, minute and second
// components.
func formatElapsed(d time.Duration) string {
	secs := int64(d / time.Second)
	parts := []struct {
		n    int64
		unit string
	}{
		{secs / 86400, "days"},
		{secs % 86400 / 3600, "hours"},
		{secs % 3600 / 60, "minutes"},
		{secs % 60, "seconds"},
	}
	var out []string
	for _, p := range parts {
		if p.n != 0 {
			out = append(out, fmt.Sprintf("%d %s", p.n, p.unit))
		}
	}
	if len(out) == 0 {
		return "0 seconds"
	}
	return strings.Join(out, " ")
}
