package render

// Element ids of the widget page
const (
	IDDropArea    = "drop-area"
	IDGallery     = "gallery"
	IDResult      = "result"
	IDDescription = "description"
	IDError       = "error"
)

// Document is the widget page: a drop area, the gallery, a single-result
// panel and an error area. The result panel and error area start hidden.
type Document struct {
	Root        *Element
	DropArea    *Element
	Gallery     *Element
	Result      *Element
	Description *Element
	ErrorArea   *Element
}

// NewDocument builds an empty widget page
func NewDocument() *Document {
	d := &Document{
		Root:        NewElement("main", "upload-widget"),
		DropArea:    NewElement("div").WithID(IDDropArea),
		Gallery:     NewElement("div").WithID(IDGallery),
		Result:      NewElement("section").WithID(IDResult),
		Description: NewElement("div").WithID(IDDescription),
		ErrorArea:   NewElement("div", "error").WithID(IDError),
	}

	d.DropArea.AppendChild(NewElement("p").WithText("Drag and drop images here, or choose files"))
	d.Result.AppendChild(d.Description)
	d.Result.Hide()
	d.ErrorArea.Hide()

	d.Root.AppendChild(d.DropArea)
	d.Root.AppendChild(d.Gallery)
	d.Root.AppendChild(d.Result)
	d.Root.AppendChild(d.ErrorArea)
	return d
}

// Snapshot captures the whole page
func (d *Document) Snapshot() Node {
	return d.Root.Snapshot()
}
