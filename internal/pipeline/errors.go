package pipeline

import "errors"

// Sentinel errors for the scan pipeline. Handlers map these to HTTP statuses
// and short user-facing messages; wrap with pkg/errors for context and test
// with errors.Is.
var (
	ErrInvalidFileType   = errors.New("invalid file type")
	ErrFileTooLarge      = errors.New("file too large")
	ErrCorruptFile       = errors.New("corrupt mesh file")
	ErrFetchFailed       = errors.New("fetch failed")
	ErrUploadFailed      = errors.New("upload failed")
	ErrCorrectionFailed  = errors.New("correction failed")
	ErrNotConfigured     = errors.New("correction endpoint not configured")
	ErrPersistenceFailed = errors.New("persistence failed")
)
