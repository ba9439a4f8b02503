package service

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/anime-shed/image-drop-go/internal/errors"
	"github.com/anime-shed/image-drop-go/internal/factory"
	"github.com/anime-shed/image-drop-go/internal/repository"
	"github.com/anime-shed/image-drop-go/internal/widget"
	"github.com/anime-shed/image-drop-go/pkg/models"
)

// DropService feeds batches from file sources into the widget
type DropService interface {
	// DropFromSource reads every file of the source and drops them as one
	// batch. The batch runs in the background.
	DropFromSource(ctx context.Context, sourceType factory.SourceType, args factory.SourceArgs) (*widget.Batch, error)

	// DropAndWait is DropFromSource followed by waiting for the outcomes. If
	// ctx ends first, in-flight uploads are cancelled.
	DropAndWait(ctx context.Context, sourceType factory.SourceType, args factory.SourceArgs) (*models.DropResponse, error)
}

// dropService implements DropService on top of a drop zone
type dropService struct {
	sources  factory.SourceFactory
	dropZone *widget.DropZone
}

// NewDropService creates a new drop service
func NewDropService(sources factory.SourceFactory, dropZone *widget.DropZone) DropService {
	return &dropService{
		sources:  sources,
		dropZone: dropZone,
	}
}

func (s *dropService) DropFromSource(ctx context.Context, sourceType factory.SourceType, args factory.SourceArgs) (*widget.Batch, error) {
	source, err := s.sources.CreateSource(sourceType, args)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid source", err)
	}

	files, err := source.Files(ctx)
	if err != nil {
		msg := fmt.Sprintf("failed to read %s", source.Describe())
		if errors.Is(err, repository.ErrFileNotFound) {
			return nil, apperrors.NewNotFoundError(msg, err)
		}
		return nil, apperrors.NewInternalError(msg, err)
	}
	if len(files) == 0 {
		return nil, apperrors.NewValidationError("nothing to upload", repository.ErrNoFiles)
	}

	return s.dropZone.Dispatch(ctx, widget.DragEvent{
		Type:         widget.Drop,
		DataTransfer: &widget.DataTransfer{Files: files},
	}), nil
}

func (s *dropService) DropAndWait(ctx context.Context, sourceType factory.SourceType, args factory.SourceArgs) (*models.DropResponse, error) {
	batch, err := s.DropFromSource(ctx, sourceType, args)
	if err != nil {
		return nil, err
	}

	outcomes, err := batch.Wait(ctx)
	if err != nil {
		batch.Cancel()
		<-batch.Done()
		outcomes = batch.Outcomes()
	}

	return &models.DropResponse{
		BatchID:  batch.ID,
		Accepted: batch.Accepted(),
		Rejected: batch.Rejected(),
		Outcomes: outcomes,
	}, nil
}
