package widget

import "github.com/anime-shed/image-drop-go/pkg/models"

// Selection is anything that yields an ordered list of chosen files
type Selection interface {
	Files() []models.PendingFile
}

// FileList is the files of a drop or a picker, in selection order
type FileList []models.PendingFile

func (l FileList) Files() []models.PendingFile { return l }

// FileInput is the file picker control
type FileInput struct {
	Name     string
	Multiple bool
	Files    FileList
}

// ChangeEvent fires when the picker's selection changes
type ChangeEvent struct {
	Target *FileInput
}

func (e ChangeEvent) Files() []models.PendingFile {
	if e.Target == nil {
		return nil
	}
	return e.Target.Files
}
