package download

// FileStatus is the lifecycle state of one file download.
type FileStatus int

const (
	StatusPending     FileStatus = -1
	StatusDownloading FileStatus = 0
	StatusCompleted   FileStatus = 1
	StatusFailed      FileStatus = 2
)

func (s FileStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDownloading:
		return "downloading"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// validTransitions defines allowed state transitions.
// Key is the "from" status, value is list of valid "to" statuses.
var validTransitions = map[FileStatus][]FileStatus{
	StatusPending:     {StatusDownloading, StatusCompleted, StatusFailed}, // completed when already on disk
	StatusDownloading: {StatusCompleted, StatusFailed},
	StatusCompleted:   {},
	StatusFailed:      {},
}

// CanTransitionTo returns true if transitioning from s to target is valid.
func (s FileStatus) CanTransitionTo(target FileStatus) bool {
	for _, v := range validTransitions[s] {
		if v == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if this status has no valid outgoing transitions.
func (s FileStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}
