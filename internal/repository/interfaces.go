package repository

import (
	"context"

	"github.com/anime-shed/image-drop-go/pkg/models"
)

// FileSource produces the files of one selection, in selection order
type FileSource interface {
	// Files loads every file of the selection
	Files(ctx context.Context) ([]models.PendingFile, error)

	// Describe names the source for logs
	Describe() string
}
