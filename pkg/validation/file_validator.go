package validation

import (
	apperrors "github.com/anime-shed/image-drop-go/internal/errors"
	"github.com/anime-shed/image-drop-go/pkg/models"
)

// FileLimits defines what a selection may contain
type FileLimits struct {
	// MaxBatchSize caps the number of files taken from one selection.
	// Zero disables the cap.
	MaxBatchSize int
}

// DefaultFileLimits returns the limits of the gallery widget
func DefaultFileLimits() FileLimits {
	return FileLimits{MaxBatchSize: 10}
}

// FileValidator checks files before any preview or upload happens
type FileValidator struct {
	limits FileLimits
}

// NewFileValidator creates a validator with default limits
func NewFileValidator() *FileValidator {
	return &FileValidator{limits: DefaultFileLimits()}
}

// NewFileValidatorWithLimits creates a validator with custom limits
func NewFileValidatorWithLimits(limits FileLimits) *FileValidator {
	return &FileValidator{limits: limits}
}

// Limits returns the active limits
func (v *FileValidator) Limits() FileLimits {
	return v.limits
}

// ValidateFile rejects files whose declared type is not image/*
func (v *FileValidator) ValidateFile(file models.PendingFile) error {
	if !file.IsImage() {
		return apperrors.NewValidationError(apperrors.MsgNotImage, nil)
	}
	return nil
}

// ValidateIndex rejects positions at or beyond the batch limit
func (v *FileValidator) ValidateIndex(index int) error {
	if v.limits.MaxBatchSize > 0 && index >= v.limits.MaxBatchSize {
		return apperrors.NewValidationError(apperrors.MsgBatchLimit(v.limits.MaxBatchSize), nil)
	}
	return nil
}

// Validate applies the batch limit first, then the type check
func (v *FileValidator) Validate(index int, file models.PendingFile) error {
	if err := v.ValidateIndex(index); err != nil {
		return err
	}
	return v.ValidateFile(file)
}
