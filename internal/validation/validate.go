package validation

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"scan-service/internal/pipeline"
)

// MaxUploadBytes is the upload size ceiling (100 MiB). Larger meshes blow up
// decode memory and are rejected before any I/O.
const MaxUploadBytes = 100 << 20

// ValidateMeshUpload applies the upload gate in order: extension first, then
// size. It runs before any byte is read or stored.
func ValidateMeshUpload(filename string, size int64) error {
	if !HasSTLExtension(filename) {
		return errors.Wrapf(pipeline.ErrInvalidFileType, "%q is not an .stl file", filename)
	}
	if size > MaxUploadBytes {
		return errors.Wrapf(pipeline.ErrFileTooLarge, "%d bytes exceeds %d byte limit", size, MaxUploadBytes)
	}
	return nil
}

// ValidateArchiveUpload gates the archive path: only ZIP containers are
// accepted, under the same size ceiling.
func ValidateArchiveUpload(filename string, size int64) error {
	if strings.ToLower(filepath.Ext(filename)) != ".zip" {
		return errors.Wrapf(pipeline.ErrInvalidFileType, "%q is not a .zip archive", filename)
	}
	if size > MaxUploadBytes {
		return errors.Wrapf(pipeline.ErrFileTooLarge, "%d bytes exceeds %d byte limit", size, MaxUploadBytes)
	}
	return nil
}

// HasSTLExtension reports whether the filename ends in .stl, case-insensitively.
func HasSTLExtension(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".stl"
}
