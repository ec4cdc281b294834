package download

import "errors"

// Sentinel errors for the download package.
var (
	// ErrNotEnoughSpace is returned when the destination volume cannot hold
	// the file plus the configured safety margin. It is never retried.
	ErrNotEnoughSpace = errors.New("not enough space")

	// ErrSizeMismatch is returned when a file still does not match its
	// remote size after the restart budget is spent.
	ErrSizeMismatch = errors.New("size mismatch")

	// ErrUnexpectedContent is returned when the server answers a file
	// request with an HTML page.
	ErrUnexpectedContent = errors.New("unexpected content type")
)
