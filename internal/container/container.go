package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/anime-shed/image-drop-go/internal/config"
	"github.com/anime-shed/image-drop-go/internal/factory"
	"github.com/anime-shed/image-drop-go/internal/logger"
	"github.com/anime-shed/image-drop-go/internal/observer"
	"github.com/anime-shed/image-drop-go/internal/preview"
	"github.com/anime-shed/image-drop-go/internal/render"
	"github.com/anime-shed/image-drop-go/internal/service"
	"github.com/anime-shed/image-drop-go/internal/storage"
	"github.com/anime-shed/image-drop-go/internal/transport"
	"github.com/anime-shed/image-drop-go/internal/widget"
)

// Container holds all application dependencies
type Container struct {
	config    *config.Config
	document  *render.Document
	objects   *preview.ObjectURLs
	previewer *preview.Previewer
	uploader  storage.Uploader
	events    *observer.EventPublisher
	metrics   *observer.MetricsObserver
	factory   *factory.ComponentFactory
	widget    *widget.Widget
	dropZone  *widget.DropZone
	drops     service.DropService
	handler   http.Handler

	// root is the parent of batches detached from their request
	root       context.Context
	cancelRoot context.CancelFunc
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger.SetLevel(cfg.LogLevel)

	// Build dependency graph
	document := render.NewDocument()
	objects := preview.NewObjectURLs()
	components := factory.NewComponentFactory(cfg, objects)

	displayStrategy, err := components.StrategyFactory.CreateStrategy(cfg.Mode, document)
	if err != nil {
		return nil, err
	}

	uploader := storage.NewHTTPUploader(storage.HTTPUploaderOptions{
		Endpoint:            cfg.UploadURL,
		Timeout:             cfg.RequestTimeout,
		Interval:            cfg.UploadInterval,
		LegacyAuthHeuristic: cfg.LegacyAuthHeuristic,
	})

	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	previewer := preview.NewPreviewer(cfg.PreviewWorkers)

	w := widget.New(widget.Options{
		Strategy:      displayStrategy,
		Uploader:      uploader,
		Previewer:     previewer,
		Events:        events,
		MaxConcurrent: cfg.MaxConcurrentUploads,
	})

	root, cancelRoot := context.WithCancel(context.Background())

	handler := transport.NewHandler(transport.Dependencies{
		Widget:   w,
		Document: document,
		Objects:  objects,
		Metrics:  metrics,
		Root:     root,
	}, cfg)

	dropZone := widget.NewDropZone(document.DropArea, w)

	return &Container{
		config:    cfg,
		document:  document,
		objects:   objects,
		previewer: previewer,
		uploader:  uploader,
		events:    events,
		metrics:   metrics,
		factory:   components,
		widget:    w,
		dropZone:  dropZone,
		drops:     service.NewDropService(components.SourceFactory, dropZone),
		handler:   handler,

		root:       root,
		cancelRoot: cancelRoot,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Widget returns the upload widget
func (c *Container) Widget() *widget.Widget {
	return c.widget
}

// DropZone returns the drop region bound to the widget
func (c *Container) DropZone() *widget.DropZone {
	return c.dropZone
}

// Drops returns the service that drops files from sources on the widget
func (c *Container) Drops() service.DropService {
	return c.drops
}

// Document returns the page the widget renders into
func (c *Container) Document() *render.Document {
	return c.document
}

// Sources returns the factory for batch sources
func (c *Container) Sources() factory.SourceFactory {
	return c.factory.SourceFactory
}

// Metrics returns the upload counters
func (c *Container) Metrics() observer.Metrics {
	return c.metrics.GetMetrics()
}

// Close waits for running batches and stops the preview workers. If ctx
// ends first, outstanding uploads are cancelled and ctx's error is returned
// once their slots have been updated.
func (c *Container) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.widget.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		logger.WithError(err).Warn("Cancelling outstanding uploads")
		c.cancelRoot()
		<-done
	}

	c.cancelRoot()
	c.previewer.Wait()
	c.previewer.Close()
	c.events.Flush()
	return err
}
