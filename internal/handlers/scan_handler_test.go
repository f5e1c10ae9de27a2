package handlers

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"scan-service/internal/pipeline"
	"scan-service/internal/services"
)

func TestStatusForPipelineError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{pipeline.ErrInvalidFileType, fiber.StatusBadRequest},
		{pipeline.ErrFileTooLarge, fiber.StatusBadRequest},
		{pipeline.ErrCorruptFile, fiber.StatusUnprocessableEntity},
		{pipeline.ErrNotConfigured, fiber.StatusServiceUnavailable},
		{pipeline.ErrCorrectionFailed, fiber.StatusBadGateway},
		{pipeline.ErrFetchFailed, fiber.StatusBadGateway},
		{pipeline.ErrUploadFailed, fiber.StatusInternalServerError},
		{pipeline.ErrPersistenceFailed, fiber.StatusInternalServerError},
		{services.ErrScanNotFound, fiber.StatusNotFound},
		{errors.New("anything else"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, msg := statusForPipelineError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.NotEmpty(t, msg)
	}
}

func TestStatusForPipelineErrorUnwrapsContext(t *testing.T) {
	wrapped := errors.Wrap(pipeline.ErrFileTooLarge, "110000000 bytes exceeds limit")
	status, msg := statusForPipelineError(wrapped)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, msg, "100MB")
}
