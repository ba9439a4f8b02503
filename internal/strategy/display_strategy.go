package strategy

import (
	"strconv"
	"sync"

	"github.com/anime-shed/image-drop-go/internal/preview"
	"github.com/anime-shed/image-drop-go/internal/render"
	"github.com/anime-shed/image-drop-go/pkg/models"
)

// PendingText is shown in a slot until its upload resolves
const PendingText = "Analyzing..."

// View groups the render targets a strategy writes to
type View struct {
	Gallery     render.Container
	Description render.Container
	ResultPanel render.Toggle
	ErrorArea   render.MessageArea
}

// ViewOf wires a View to the regions of doc
func ViewOf(doc *render.Document) View {
	return View{
		Gallery:     doc.Gallery,
		Description: doc.Description,
		ResultPanel: doc.Result,
		ErrorArea:   doc.ErrorArea,
	}
}

// Slot is the per-file region addressed by handle. In single mode it is a
// bare handle without its own elements.
type Slot struct {
	BatchID string
	Index   int

	root     *render.Element
	previews *render.Element
	analysis *render.Element
}

// DisplayStrategy carries the behaviour that differs between the single
// image widget and the gallery widget. Callers serialize calls.
type DisplayStrategy interface {
	Name() string
	// BatchLimit caps files per selection; zero means no cap
	BatchLimit() int
	// SendsIndex reports whether uploads carry the "index" field
	SendsIndex() bool
	// PreviewsOnSelect reports whether files are previewed before upload
	PreviewsOnSelect() bool

	BeginBatch(batchID string)
	AllocateSlot(batchID string, index int, file models.PendingFile) *Slot
	ShowPreview(slot *Slot, file models.PendingFile, pv preview.Preview)
	DisplayResult(slot *Slot, file models.PendingFile, result models.AnalysisResult)
	ShowError(slot *Slot, message string)
}

// SingleStrategy mirrors the one-image widget: each result replaces the
// gallery, errors hide the result panel.
type SingleStrategy struct {
	view    View
	objects *preview.ObjectURLs

	mu      sync.Mutex
	current string
}

// NewSingleStrategy creates the single-image strategy
func NewSingleStrategy(view View, objects *preview.ObjectURLs) *SingleStrategy {
	return &SingleStrategy{view: view, objects: objects}
}

func (s *SingleStrategy) Name() string           { return "single" }
func (s *SingleStrategy) BatchLimit() int        { return 0 }
func (s *SingleStrategy) SendsIndex() bool       { return false }
func (s *SingleStrategy) PreviewsOnSelect() bool { return false }

func (s *SingleStrategy) BeginBatch(string) {}

func (s *SingleStrategy) AllocateSlot(batchID string, index int, _ models.PendingFile) *Slot {
	return &Slot{BatchID: batchID, Index: index}
}

func (s *SingleStrategy) ShowPreview(*Slot, models.PendingFile, preview.Preview) {}

// DisplayResult swaps the displayed image for file. The object URL of the
// image being replaced is revoked.
func (s *SingleStrategy) DisplayResult(_ *Slot, file models.PendingFile, result models.AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.view.Gallery.Clear()
	if s.current != "" {
		s.objects.Revoke(s.current)
	}
	s.current = s.objects.Create(file)

	img := render.NewElement("img")
	img.SetAttr("src", s.current)
	img.SetAttr("alt", file.Name)
	s.view.Gallery.AppendChild(img)

	s.view.Description.Clear()
	s.view.Description.AppendChild(render.NewElement("h3", "file-name").WithText(file.Name))
	appendSections(s.view.Description, result)

	s.view.ResultPanel.Show()
	s.view.ErrorArea.Hide()
}

func (s *SingleStrategy) ShowError(_ *Slot, message string) {
	s.view.ErrorArea.SetText(message)
	s.view.ErrorArea.Show()
	s.view.ResultPanel.Hide()
}

// CurrentObjectURL returns the object URL of the displayed image
func (s *SingleStrategy) CurrentObjectURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// GalleryStrategy mirrors the multi-image widget: one slot per file, results
// accumulate and errors never clear completed slots.
type GalleryStrategy struct {
	view  View
	limit int
}

// NewGalleryStrategy creates the gallery strategy with the given batch limit
func NewGalleryStrategy(view View, limit int) *GalleryStrategy {
	return &GalleryStrategy{view: view, limit: limit}
}

func (g *GalleryStrategy) Name() string           { return "gallery" }
func (g *GalleryStrategy) BatchLimit() int        { return g.limit }
func (g *GalleryStrategy) SendsIndex() bool       { return true }
func (g *GalleryStrategy) PreviewsOnSelect() bool { return true }

// BeginBatch hides the banner left by the previous batch
func (g *GalleryStrategy) BeginBatch(string) {
	g.view.ErrorArea.Hide()
}

// AllocateSlot appends an empty slot to the gallery. Slots are allocated in
// index order, before any upload completes.
func (g *GalleryStrategy) AllocateSlot(batchID string, index int, file models.PendingFile) *Slot {
	root := render.NewElement("div", "slot")
	root.SetAttr("data-batch", batchID)
	root.SetAttr("data-index", strconv.Itoa(index))
	root.SetAttr("title", file.Name)

	previews := render.NewElement("div", "preview")
	analysis := render.NewElement("div", "analysis")
	analysis.AppendChild(render.NewElement("p", "pending").WithText(PendingText))

	root.AppendChild(previews)
	root.AppendChild(analysis)
	g.view.Gallery.AppendChild(root)

	return &Slot{BatchID: batchID, Index: index, root: root, previews: previews, analysis: analysis}
}

func (g *GalleryStrategy) ShowPreview(slot *Slot, file models.PendingFile, pv preview.Preview) {
	if slot == nil || slot.previews == nil {
		return
	}
	img := render.NewElement("img")
	img.SetAttr("src", pv.Src)
	img.SetAttr("alt", file.Name)
	if pv.Width > 0 && pv.Height > 0 {
		img.SetAttr("width", strconv.Itoa(pv.Width))
		img.SetAttr("height", strconv.Itoa(pv.Height))
	}
	slot.previews.Clear()
	slot.previews.AppendChild(img)
}

func (g *GalleryStrategy) DisplayResult(slot *Slot, file models.PendingFile, result models.AnalysisResult) {
	if slot == nil || slot.analysis == nil {
		return
	}
	slot.analysis.Clear()
	slot.analysis.AppendChild(render.NewElement("h3", "file-name").WithText(file.Name))
	appendSections(slot.analysis, result)
	slot.root.AddClass("done")
}

// ShowError writes message into the slot, when there is one, and raises the
// banner. Completed slots are left alone.
func (g *GalleryStrategy) ShowError(slot *Slot, message string) {
	if slot != nil && slot.analysis != nil {
		slot.analysis.Clear()
		slot.analysis.AppendChild(render.NewElement("p", "error").WithText(message))
		slot.root.AddClass("failed")
	}
	g.view.ErrorArea.SetText(message)
	g.view.ErrorArea.Show()
}

func appendSections(c render.Container, result models.AnalysisResult) {
	for _, section := range result.Sections() {
		c.AppendChild(render.NewElement("p", "section").WithText(section))
	}
}
