package converter

import "fmt"

// FailureKind classifies a per-file conversion failure.
type FailureKind string

const (
	FailureNone   FailureKind = ""
	FailureDecode FailureKind = "decode"
	FailureResize FailureKind = "resize"
	FailureEncode FailureKind = "encode"
	FailureSize   FailureKind = "size"
)

// DirectoryAccessError reports that the source directory is missing or
// unreadable. It is the only fatal error class: nothing has been processed
// when it occurs, so the whole run aborts.
type DirectoryAccessError struct {
	Dir string
	Err error
}

func (e *DirectoryAccessError) Error() string {
	return fmt.Sprintf("cannot access directory %s: %v", e.Dir, e.Err)
}

func (e *DirectoryAccessError) Unwrap() error {
	return e.Err
}
