// Package progress holds the per-item and per-file state of a download
// session for display.
package progress

import "sync"

// ItemStatus is the state of one requested item.
type ItemStatus int

const (
	ItemInvalid     ItemStatus = -3
	ItemAborted     ItemStatus = -2
	ItemPending     ItemStatus = -1
	ItemDownloading ItemStatus = 0
	ItemCompleted   ItemStatus = 1
)

func (s ItemStatus) String() string {
	switch s {
	case ItemInvalid:
		return "invalid"
	case ItemAborted:
		return "aborted"
	case ItemPending:
		return "pending"
	case ItemDownloading:
		return "downloading"
	case ItemCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ItemRow is one row of the items table.
type ItemRow struct {
	Name   string
	Type   string
	Status ItemStatus
}

// ItemsTable lists the items of a session in submission order.
type ItemsTable struct {
	mu       sync.RWMutex
	rows     []ItemRow
	onChange func(index int, row ItemRow)
}

// NewItemsTable creates an empty table. onChange may be nil; it is called
// outside the lock after every mutation.
func NewItemsTable(onChange func(index int, row ItemRow)) *ItemsTable {
	return &ItemsTable{onChange: onChange}
}

// Add appends a pending item and returns its index.
func (t *ItemsTable) Add(name, typ string) int {
	t.mu.Lock()
	t.rows = append(t.rows, ItemRow{Name: name, Type: typ, Status: ItemPending})
	i := len(t.rows) - 1
	row := t.rows[i]
	t.mu.Unlock()
	t.notify(i, row)
	return i
}

// SetStatus updates item i. Out of range indexes are ignored.
func (t *ItemsTable) SetStatus(i int, s ItemStatus) {
	t.mu.Lock()
	if i < 0 || i >= len(t.rows) {
		t.mu.Unlock()
		return
	}
	t.rows[i].Status = s
	row := t.rows[i]
	t.mu.Unlock()
	t.notify(i, row)
}

// AbortUnfinished marks every pending or downloading item aborted and
// returns how many changed.
func (t *ItemsTable) AbortUnfinished() int {
	t.mu.Lock()
	var changed []int
	for i := range t.rows {
		if s := t.rows[i].Status; s == ItemPending || s == ItemDownloading {
			t.rows[i].Status = ItemAborted
			changed = append(changed, i)
		}
	}
	rows := make([]ItemRow, len(changed))
	for j, i := range changed {
		rows[j] = t.rows[i]
	}
	t.mu.Unlock()

	for j, i := range changed {
		t.notify(i, rows[j])
	}
	return len(changed)
}

// Rows returns a snapshot of the table.
func (t *ItemsTable) Rows() []ItemRow {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ItemRow, len(t.rows))
	copy(out, t.rows)
	return out
}

// Count returns the number of items with status s.
func (t *ItemsTable) Count(s ItemStatus) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, r := range t.rows {
		if r.Status == s {
			n++
		}
	}
	return n
}

func (t *ItemsTable) notify(i int, row ItemRow) {
	if t.onChange != nil {
		t.onChange(i, row)
	}
}
