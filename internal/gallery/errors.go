package gallery

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownSource       = errors.New("unknown source")
	ErrUnknownDownloadType = errors.New("unknown download type")
	ErrUnknownOrder        = errors.New("unknown order")
	ErrPathTraversal       = errors.New("path escapes download root")

	// ErrAssumption marks a response whose shape no longer matches what
	// the extractor expects.
	ErrAssumption = errors.New("upstream assumption violated")
)

// AssumptionError describes one field of an upstream response that was
// missing or malformed.
type AssumptionError struct {
	Source    Source
	GalleryID int
	URL       string
	Field     string
	Err       error
}

func (e *AssumptionError) Error() string {
	msg := fmt.Sprintf("%s gallery %d: field %q", e.Source, e.GalleryID, e.Field)
	if e.URL != "" {
		msg += " at " + e.URL
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AssumptionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAssumption}
	}
	return []error{ErrAssumption, e.Err}
}
