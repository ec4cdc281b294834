package download

// tracker accumulates transferred bytes across re-issued requests. Each
// request reports received bytes from zero, so the bytes on disk before
// the request are carried as base and the total only ever grows.
type tracker struct {
	base int64
	max  int64
}

// observe records received bytes for the current request and returns the
// running total.
func (t *tracker) observe(received int64) int64 {
	if total := t.base + received; total > t.max {
		t.max = total
	}
	return t.max
}

// rebase starts a new request at offset bytes already on disk.
func (t *tracker) rebase(offset int64) {
	t.base = offset
	if offset > t.max {
		t.max = offset
	}
}
