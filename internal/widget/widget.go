// Package widget turns file selections into uploads and renders the
// analysis of each file into its own slot.
package widget

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/anime-shed/image-drop-go/internal/errors"
	"github.com/anime-shed/image-drop-go/internal/logger"
	"github.com/anime-shed/image-drop-go/internal/observer"
	"github.com/anime-shed/image-drop-go/internal/preview"
	"github.com/anime-shed/image-drop-go/internal/storage"
	"github.com/anime-shed/image-drop-go/internal/strategy"
	"github.com/anime-shed/image-drop-go/pkg/models"
	"github.com/anime-shed/image-drop-go/pkg/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Options configures a Widget. Previewer and Events are optional.
type Options struct {
	Strategy  strategy.DisplayStrategy
	Uploader  storage.Uploader
	Previewer *preview.Previewer
	Events    observer.Subject
	// MaxConcurrent caps simultaneous uploads per batch; zero means one
	// goroutine per file
	MaxConcurrent int
}

// Widget is the upload widget. HandleFiles may be called from any goroutine;
// display updates are applied one at a time.
type Widget struct {
	strategy      strategy.DisplayStrategy
	uploader      storage.Uploader
	previewer     *preview.Previewer
	events        observer.Subject
	validator     *validation.FileValidator
	maxConcurrent int

	renderMu sync.Mutex
	inflight sync.WaitGroup
}

func New(opts Options) *Widget {
	return &Widget{
		strategy:      opts.Strategy,
		uploader:      opts.Uploader,
		previewer:     opts.Previewer,
		events:        opts.Events,
		validator:     validation.NewFileValidatorWithLimits(validation.FileLimits{MaxBatchSize: opts.Strategy.BatchLimit()}),
		maxConcurrent: opts.MaxConcurrent,
	}
}

// Mode returns the name of the display strategy
func (w *Widget) Mode() string {
	return w.strategy.Name()
}

// HandleFiles validates the selection, allocates a slot per accepted file
// and starts the previews and uploads. It returns without waiting for any
// of them.
func (w *Widget) HandleFiles(ctx context.Context, sel Selection) *Batch {
	var files []models.PendingFile
	if sel != nil {
		files = sel.Files()
	}

	ctx, cancel := context.WithCancel(ctx)
	batch := newBatch(uuid.NewString(), files, cancel)

	if len(files) == 0 {
		cancel()
		close(batch.done)
		return batch
	}

	w.publish(ctx, observer.UploadEvent{
		EventType: observer.BatchReceived,
		BatchID:   batch.ID,
		Index:     -1,
		Success:   true,
		Metadata:  map[string]interface{}{"files": len(files), "mode": w.strategy.Name()},
	})

	records := w.accept(ctx, batch, files)

	w.inflight.Add(1)
	go func() {
		defer w.inflight.Done()
		defer close(batch.done)
		defer cancel()
		w.dispatch(ctx, batch, records)
	}()

	return batch
}

// accept runs validation in selection order and allocates slots for the
// files that pass. Rejected files still use up their index.
func (w *Widget) accept(ctx context.Context, batch *Batch, files []models.PendingFile) []UploadRecord {
	w.renderMu.Lock()
	defer w.renderMu.Unlock()

	w.strategy.BeginBatch(batch.ID)

	records := make([]UploadRecord, 0, len(files))
	for i, file := range files {
		if err := w.validator.Validate(i, file); err != nil {
			msg := apperrors.UserMessage(err)
			w.strategy.ShowError(nil, msg)
			batch.record(models.Outcome{
				Index:     i,
				FileName:  file.Name,
				Status:    models.OutcomeRejected,
				Error:     msg,
				ErrorType: string(apperrors.ErrorTypeValidation),
			})
			w.publish(ctx, observer.UploadEvent{
				EventType:    observer.FileRejected,
				BatchID:      batch.ID,
				Index:        i,
				FileName:     file.Name,
				ErrorMessage: msg,
			})
			continue
		}

		records = append(records, UploadRecord{
			BatchID: batch.ID,
			Index:   i,
			File:    file,
			Slot:    w.strategy.AllocateSlot(batch.ID, i, file),
		})
	}

	batch.mu.Lock()
	batch.accepted = len(records)
	batch.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"batch_id": batch.ID,
		"files":    len(files),
		"accepted": len(records),
		"mode":     w.strategy.Name(),
	}).Info("Batch received")

	return records
}

func (w *Widget) dispatch(ctx context.Context, batch *Batch, records []UploadRecord) {
	var previews sync.WaitGroup
	if w.previewer != nil && w.strategy.PreviewsOnSelect() {
		for _, rec := range records {
			rec := rec
			previews.Add(1)
			submitted := w.previewer.Preview(rec.File, func(pv preview.Preview) {
				defer previews.Done()
				w.showPreview(ctx, rec, pv)
			})
			if !submitted {
				previews.Done()
			}
		}
	}

	var g errgroup.Group
	if w.maxConcurrent > 0 {
		g.SetLimit(w.maxConcurrent)
	}
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			w.uploadFile(ctx, batch, rec)
			return nil
		})
	}

	_ = g.Wait()
	previews.Wait()
}

func (w *Widget) showPreview(ctx context.Context, rec UploadRecord, pv preview.Preview) {
	w.renderMu.Lock()
	w.strategy.ShowPreview(rec.Slot, rec.File, pv)
	w.renderMu.Unlock()

	w.publish(ctx, observer.UploadEvent{
		EventType: observer.PreviewRendered,
		BatchID:   rec.BatchID,
		Index:     rec.Index,
		FileName:  rec.File.Name,
		Success:   true,
		Metadata:  map[string]interface{}{"width": pv.Width, "height": pv.Height},
	})
}

// uploadFile posts one file and renders whatever comes back. Failures are
// terminal for this file only.
func (w *Widget) uploadFile(ctx context.Context, batch *Batch, rec UploadRecord) {
	start := time.Now()
	w.publish(ctx, observer.UploadEvent{
		EventType: observer.UploadStarted,
		BatchID:   rec.BatchID,
		Index:     rec.Index,
		FileName:  rec.File.Name,
		Metadata:  map[string]interface{}{"bytes": rec.File.Size(), "type": rec.File.Type},
	})

	result, err := w.uploader.Upload(ctx, storage.UploadRequest{
		File:      rec.File,
		Index:     rec.Index,
		SendIndex: w.strategy.SendsIndex(),
	})
	elapsed := time.Since(start)

	if err != nil {
		msg := apperrors.UserMessage(err)
		errType := ""
		if appErr, ok := apperrors.As(err); ok {
			errType = string(appErr.Type)
		}

		logger.WithFields(logrus.Fields{
			"batch_id":   rec.BatchID,
			"index":      rec.Index,
			"file_name":  rec.File.Name,
			"bytes":      rec.File.Size(),
			"error_type": errType,
		}).WithError(err).Warn("Upload failed")

		w.showError(rec, msg)
		batch.record(models.Outcome{
			Index:     rec.Index,
			FileName:  rec.File.Name,
			Status:    models.OutcomeErrored,
			Error:     msg,
			ErrorType: errType,
		})
		w.publish(ctx, observer.UploadEvent{
			EventType:      observer.UploadFailed,
			BatchID:        rec.BatchID,
			Index:          rec.Index,
			FileName:       rec.File.Name,
			ProcessingTime: elapsed,
			ErrorMessage:   msg,
		})
		return
	}

	w.displayResult(rec, result)
	batch.record(models.Outcome{
		Index:       rec.Index,
		FileName:    rec.File.Name,
		Status:      models.OutcomeRendered,
		Description: result.Sections(),
	})
	w.publish(ctx, observer.UploadEvent{
		EventType:      observer.UploadCompleted,
		BatchID:        rec.BatchID,
		Index:          rec.Index,
		FileName:       rec.File.Name,
		ProcessingTime: elapsed,
		Success:        true,
	})
}

func (w *Widget) displayResult(rec UploadRecord, result models.AnalysisResult) {
	w.renderMu.Lock()
	defer w.renderMu.Unlock()
	w.strategy.DisplayResult(rec.Slot, rec.File, result)
}

func (w *Widget) showError(rec UploadRecord, message string) {
	w.renderMu.Lock()
	defer w.renderMu.Unlock()
	w.strategy.ShowError(rec.Slot, message)
}

// Render runs fn while no display update is in progress
func (w *Widget) Render(fn func()) {
	w.renderMu.Lock()
	defer w.renderMu.Unlock()
	fn()
}

// Wait blocks until every batch started so far has finished. It must not
// race with HandleFiles.
func (w *Widget) Wait() {
	w.inflight.Wait()
}

func (w *Widget) publish(ctx context.Context, event observer.UploadEvent) {
	if w.events == nil {
		return
	}
	w.events.NotifyObservers(context.WithoutCancel(ctx), event)
}
