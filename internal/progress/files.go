package progress

import (
	"sync"

	"github.com/vmunix/galleria/internal/download"
)

// FileInfo is one row of the files table.
type FileInfo struct {
	Filename    string
	Status      download.FileStatus
	Size        int64 // -1 when unknown
	Speed       float64
	Transferred int64
}

// FilesTable lists the files of the gallery being downloaded.
type FilesTable struct {
	mu       sync.RWMutex
	rows     []FileInfo
	onChange func(index int, row FileInfo)
}

// NewFilesTable creates an empty table. onChange may be nil.
func NewFilesTable(onChange func(index int, row FileInfo)) *FilesTable {
	return &FilesTable{onChange: onChange}
}

// Add appends a pending file and returns a handle that receives the
// downloader's updates.
func (t *FilesTable) Add(filename string) *FileRow {
	t.mu.Lock()
	t.rows = append(t.rows, FileInfo{Filename: filename, Status: download.StatusPending, Size: -1})
	i := len(t.rows) - 1
	row := t.rows[i]
	t.mu.Unlock()
	t.notify(i, row)
	return &FileRow{table: t, index: i}
}

// Reset drops all rows. Handles from before the reset become inert.
func (t *FilesTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = nil
}

// Rows returns a snapshot of the table.
func (t *FilesTable) Rows() []FileInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]FileInfo, len(t.rows))
	copy(out, t.rows)
	return out
}

func (t *FilesTable) update(i int, fn func(*FileInfo)) {
	t.mu.Lock()
	if i >= len(t.rows) {
		t.mu.Unlock()
		return
	}
	fn(&t.rows[i])
	row := t.rows[i]
	t.mu.Unlock()
	t.notify(i, row)
}

func (t *FilesTable) notify(i int, row FileInfo) {
	if t.onChange != nil {
		t.onChange(i, row)
	}
}

// FileRow is a handle to one row. It implements download.Row.
type FileRow struct {
	table *FilesTable
	index int
}

var _ download.Row = (*FileRow)(nil)

func (r *FileRow) SetStatus(s download.FileStatus) {
	r.table.update(r.index, func(f *FileInfo) {
		f.Status = s
		if s != download.StatusDownloading {
			f.Speed = 0
		}
	})
}

func (r *FileRow) SetSize(n int64) {
	r.table.update(r.index, func(f *FileInfo) { f.Size = n })
}

func (r *FileRow) SetTransferred(n int64) {
	r.table.update(r.index, func(f *FileInfo) { f.Transferred = n })
}

func (r *FileRow) SetSpeed(v float64) {
	r.table.update(r.index, func(f *FileInfo) { f.Speed = v })
}

// Info returns a snapshot of the row.
func (r *FileRow) Info() FileInfo {
	r.table.mu.RLock()
	defer r.table.mu.RUnlock()
	if r.index >= len(r.table.rows) {
		return FileInfo{}
	}
	return r.table.rows[r.index]
}
