package repository

import "errors"

var (
	// ErrNoFiles indicates the selection is empty
	ErrNoFiles = errors.New("no files selected")

	// ErrFileNotFound indicates a selected path does not exist
	ErrFileNotFound = errors.New("file not found")

	// ErrSourceUnavailable indicates the source could not be reached
	ErrSourceUnavailable = errors.New("source unavailable")
)
