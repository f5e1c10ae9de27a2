package validation

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"scan-service/internal/pipeline"
)

func TestValidateMeshUpload(t *testing.T) {
	assert.NoError(t, ValidateMeshUpload("jaw.stl", 1024))
	assert.NoError(t, ValidateMeshUpload("JAW.STL", MaxUploadBytes))

	err := ValidateMeshUpload("jaw.obj", 1024)
	assert.True(t, errors.Is(err, pipeline.ErrInvalidFileType))

	err = ValidateMeshUpload("jaw.stl", MaxUploadBytes+1)
	assert.True(t, errors.Is(err, pipeline.ErrFileTooLarge))
}

func TestValidateMeshUploadChecksExtensionFirst(t *testing.T) {
	// An oversized file with the wrong extension reports the type error.
	err := ValidateMeshUpload("jaw.obj", MaxUploadBytes+1)
	assert.True(t, errors.Is(err, pipeline.ErrInvalidFileType))
}

func TestValidateArchiveUpload(t *testing.T) {
	assert.NoError(t, ValidateArchiveUpload("scans.zip", 1024))

	err := ValidateArchiveUpload("scans.tar", 1024)
	assert.True(t, errors.Is(err, pipeline.ErrInvalidFileType))

	err = ValidateArchiveUpload("scans.zip", MaxUploadBytes+1)
	assert.True(t, errors.Is(err, pipeline.ErrFileTooLarge))
}

func TestHasSTLExtension(t *testing.T) {
	assert.True(t, HasSTLExtension("a.stl"))
	assert.True(t, HasSTLExtension("a.StL"))
	assert.False(t, HasSTLExtension("a.stl.txt"))
	assert.False(t, HasSTLExtension("stl"))
}
