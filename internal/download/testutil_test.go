package download

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/vmunix/galleria/internal/transport"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func payload(n int) []byte {
	r := rand.New(rand.NewPCG(1, 2))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.IntN(256))
	}
	return b
}

// newTestDownloader returns a Downloader over an in-memory filesystem with
// plenty of free space.
func newTestDownloader(t *testing.T, livenessURL string) (*Downloader, afero.Fs) {
	t.Helper()
	client := transport.New(transport.Options{
		RequestCooldown: -1,
		RetryCooldown:   10 * time.Millisecond,
		ReplyTimeout:    200 * time.Millisecond,
		LivenessURL:     livenessURL,
	}, testLogger())
	fs := afero.NewMemMapFs()
	d := New(client, Options{
		Fs:          fs,
		FreeSpace:   func(string) (int64, error) { return 1 << 40, nil },
		MaxRestarts: 2,
	}, testLogger())
	return d, fs
}

// recordingRow captures every update it receives.
type recordingRow struct {
	mu          sync.Mutex
	statuses    []FileStatus
	size        int64
	transferred []int64
	speeds      []float64
}

func (r *recordingRow) SetStatus(s FileStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recordingRow) SetSize(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.size = n
}

func (r *recordingRow) SetTransferred(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transferred = append(r.transferred, n)
}

func (r *recordingRow) SetSpeed(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speeds = append(r.speeds, v)
}

func (r *recordingRow) lastStatus() FileStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[len(r.statuses)-1]
}

func (r *recordingRow) monotone() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 1; i < len(r.transferred); i++ {
		if r.transferred[i] < r.transferred[i-1] {
			return false
		}
	}
	return true
}
