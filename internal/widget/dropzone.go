package widget

import (
	"context"

	"github.com/anime-shed/image-drop-go/internal/render"
)

// HighlightClass marks the drop region while files are dragged over it
const HighlightClass = "highlight"

// DragEventType names the drag and drop events the drop region handles
type DragEventType string

const (
	DragEnter DragEventType = "dragenter"
	DragOver  DragEventType = "dragover"
	DragLeave DragEventType = "dragleave"
	Drop      DragEventType = "drop"
)

// DataTransfer carries the dragged files
type DataTransfer struct {
	Files FileList
}

// DragEvent is one event delivered to the drop region
type DragEvent struct {
	Type         DragEventType
	DataTransfer *DataTransfer
}

// DropZone binds a region of the page to a widget
type DropZone struct {
	region *render.Element
	widget *Widget
}

func NewDropZone(region *render.Element, w *Widget) *DropZone {
	return &DropZone{region: region, widget: w}
}

// Dispatch handles ev. A drop starts a batch, which is returned; every other
// event returns nil.
func (d *DropZone) Dispatch(ctx context.Context, ev DragEvent) *Batch {
	switch ev.Type {
	case DragEnter, DragOver:
		d.widget.Render(func() { d.region.AddClass(HighlightClass) })
	case DragLeave:
		d.widget.Render(func() { d.region.RemoveClass(HighlightClass) })
	case Drop:
		d.widget.Render(func() { d.region.RemoveClass(HighlightClass) })
		var files FileList
		if ev.DataTransfer != nil {
			files = ev.DataTransfer.Files
		}
		return d.widget.HandleFiles(ctx, files)
	}
	return nil
}

// Highlighted reports whether files are being dragged over the region
func (d *DropZone) Highlighted() bool {
	return d.region.HasClass(HighlightClass)
}
