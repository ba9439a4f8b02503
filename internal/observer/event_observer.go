package observer

import (
	"context"
	"sync"
	"time"

	"github.com/anime-shed/image-drop-go/internal/logger"

	"github.com/sirupsen/logrus"
)

// UploadEvent describes something that happened to one file or batch
type UploadEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	BatchID        string                 `json:"batch_id"`
	Index          int                    `json:"index"`
	FileName       string                 `json:"file_name,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of upload event
type EventType string

const (
	// BatchReceived when a selection has been handed to the widget
	BatchReceived EventType = "batch_received"
	// FileRejected when local validation refuses a file
	FileRejected EventType = "file_rejected"
	// PreviewRendered when a preview image is attached to its slot
	PreviewRendered EventType = "preview_rendered"
	// UploadStarted when the request for a file is issued
	UploadStarted EventType = "upload_started"
	// UploadCompleted when the analysis text has been rendered
	UploadCompleted EventType = "upload_completed"
	// UploadFailed when a request or the server reported an error
	UploadFailed EventType = "upload_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event UploadEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event UploadEvent)
}

// LoggingObserver logs upload events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles upload events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event UploadEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"batch_id":   event.BatchID,
		"index":      event.Index,
		"file":       event.FileName,
	}

	if event.ProcessingTime > 0 {
		fields["processing_time_ms"] = event.ProcessingTime.Milliseconds()
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case BatchReceived:
		entry.Info("Batch received")
	case FileRejected:
		entry.Warn("File rejected")
	case PreviewRendered:
		entry.Debug("Preview rendered")
	case UploadStarted:
		entry.Debug("Upload started")
	case UploadCompleted:
		entry.Info("Upload completed")
	case UploadFailed:
		entry.Error("Upload failed")
	default:
		entry.Info("Upload event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver counts upload events
type MetricsObserver struct {
	mu                  sync.RWMutex
	batches             int64
	rejected            int64
	started             int64
	completed           int64
	failed              int64
	previews            int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles upload events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event UploadEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case BatchReceived:
		o.batches++
	case FileRejected:
		o.rejected++
	case PreviewRendered:
		o.previews++
	case UploadStarted:
		o.started++
	case UploadCompleted:
		o.completed++
		o.totalProcessingTime += event.ProcessingTime
	case UploadFailed:
		o.failed++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// Metrics is a snapshot of the counters
type Metrics struct {
	Batches           int64         `json:"batches"`
	Rejected          int64         `json:"rejected"`
	Previews          int64         `json:"previews"`
	UploadsStarted    int64         `json:"uploads_started"`
	UploadsCompleted  int64         `json:"uploads_completed"`
	UploadsFailed     int64         `json:"uploads_failed"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avg := time.Duration(0)
	if o.completed > 0 {
		avg = o.totalProcessingTime / time.Duration(o.completed)
	}

	return Metrics{
		Batches:           o.batches,
		Rejected:          o.rejected,
		Previews:          o.previews,
		UploadsStarted:    o.started,
		UploadsCompleted:  o.completed,
		UploadsFailed:     o.failed,
		AvgProcessingTime: avg,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	wg        sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event. Observers run
// concurrently so a slow observer never delays rendering.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event UploadEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		p.wg.Add(1)
		go func(obs Observer) {
			defer p.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					// Log panic but don't crash the application
					logger.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Flush waits until every notification issued so far has been handled
func (p *EventPublisher) Flush() {
	p.wg.Wait()
}
