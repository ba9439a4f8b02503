package factory

import (
	"fmt"

	"github.com/anime-shed/image-drop-go/internal/config"
	"github.com/anime-shed/image-drop-go/internal/preview"
	"github.com/anime-shed/image-drop-go/internal/render"
	"github.com/anime-shed/image-drop-go/internal/repository"
	"github.com/anime-shed/image-drop-go/internal/storage"
	"github.com/anime-shed/image-drop-go/internal/strategy"
)

// SourceType represents where a batch of files is read from
type SourceType string

const (
	// LocalSource for paths on the local file system
	LocalSource SourceType = "local"
	// AzureSource for blobs in an Azure storage container
	AzureSource SourceType = "azure"
)

// SourceArgs selects the files of a source. Paths is used by LocalSource,
// Prefix by AzureSource.
type SourceArgs struct {
	Paths  []string
	Prefix string
}

// SourceFactory creates file sources
type SourceFactory interface {
	CreateSource(sourceType SourceType, args SourceArgs) (repository.FileSource, error)
}

// StrategyFactory creates display strategies
type StrategyFactory interface {
	CreateStrategy(mode string, doc *render.Document) (strategy.DisplayStrategy, error)
}

// sourceFactory implements SourceFactory
type sourceFactory struct {
	cfg *config.Config
}

// NewSourceFactory creates a new source factory
func NewSourceFactory(cfg *config.Config) SourceFactory {
	return &sourceFactory{cfg: cfg}
}

// CreateSource creates a source based on the specified type
func (f *sourceFactory) CreateSource(sourceType SourceType, args SourceArgs) (repository.FileSource, error) {
	switch sourceType {
	case LocalSource:
		if len(args.Paths) == 0 {
			return nil, repository.ErrNoFiles
		}
		return repository.NewLocalSource(args.Paths...), nil
	case AzureSource:
		if !f.cfg.AzureEnabled() {
			return nil, fmt.Errorf("%w: AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY are not set", repository.ErrSourceUnavailable)
		}
		return storage.NewAzureSource(f.cfg.AzureAccountName, f.cfg.AzureAccountKey, f.cfg.AzureContainer, args.Prefix)
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceType)
	}
}

// strategyFactory implements StrategyFactory
type strategyFactory struct {
	cfg     *config.Config
	objects *preview.ObjectURLs
}

// NewStrategyFactory creates a new strategy factory. objects backs the
// single-image mode.
func NewStrategyFactory(cfg *config.Config, objects *preview.ObjectURLs) StrategyFactory {
	return &strategyFactory{cfg: cfg, objects: objects}
}

// CreateStrategy creates the display strategy for mode
func (f *strategyFactory) CreateStrategy(mode string, doc *render.Document) (strategy.DisplayStrategy, error) {
	view := strategy.ViewOf(doc)
	switch mode {
	case config.ModeSingle:
		return strategy.NewSingleStrategy(view, f.objects), nil
	case config.ModeGallery:
		return strategy.NewGalleryStrategy(view, f.cfg.MaxBatchSize), nil
	default:
		return nil, fmt.Errorf("unsupported display mode: %s", mode)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	SourceFactory   SourceFactory
	StrategyFactory StrategyFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config, objects *preview.ObjectURLs) *ComponentFactory {
	return &ComponentFactory{
		SourceFactory:   NewSourceFactory(cfg),
		StrategyFactory: NewStrategyFactory(cfg, objects),
	}
}
