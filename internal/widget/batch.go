package widget

import (
	"context"
	"sync"

	"github.com/anime-shed/image-drop-go/internal/strategy"
	"github.com/anime-shed/image-drop-go/pkg/models"
)

// UploadRecord ties one accepted file to its position and display slot. It
// is created once per file and never modified.
type UploadRecord struct {
	BatchID string
	Index   int
	File    models.PendingFile
	Slot    *strategy.Slot
}

// Batch tracks the files handed to HandleFiles in one call
type Batch struct {
	ID string

	mu       sync.Mutex
	outcomes []models.Outcome
	accepted int
	rejected int

	done   chan struct{}
	cancel context.CancelFunc
}

func newBatch(id string, files []models.PendingFile, cancel context.CancelFunc) *Batch {
	b := &Batch{
		ID:       id,
		outcomes: make([]models.Outcome, len(files)),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
	for i, f := range files {
		b.outcomes[i] = models.Outcome{Index: i, FileName: f.Name, Status: models.OutcomePending}
	}
	return b
}

func (b *Batch) record(o models.Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o.Index < 0 || o.Index >= len(b.outcomes) {
		return
	}
	b.outcomes[o.Index] = o
	if o.Status == models.OutcomeRejected {
		b.rejected++
	}
}

// Outcomes returns the current outcome of every file in selection order.
// Files still in flight report OutcomePending.
func (b *Batch) Outcomes() []models.Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Outcome, len(b.outcomes))
	copy(out, b.outcomes)
	return out
}

// Accepted returns how many files passed validation
func (b *Batch) Accepted() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accepted
}

// Rejected returns how many files failed validation
func (b *Batch) Rejected() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rejected
}

// Done is closed once every upload and preview of the batch has finished
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch finishes or ctx is done
func (b *Batch) Wait(ctx context.Context) ([]models.Outcome, error) {
	select {
	case <-b.done:
		return b.Outcomes(), nil
	case <-ctx.Done():
		return b.Outcomes(), ctx.Err()
	}
}

// Cancel aborts in-flight uploads. Their slots show the cancellation message.
func (b *Batch) Cancel() {
	b.cancel()
}
