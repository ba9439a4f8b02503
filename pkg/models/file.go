package models

import "strings"

// PendingFile is a user-selected file blob. It is never mutated after
// construction and lives only for one preview/upload cycle.
type PendingFile struct {
	Name string
	Type string
	Data []byte
}

// NewPendingFile copies data so later changes by the caller do not leak in
func NewPendingFile(name, mimeType string, data []byte) PendingFile {
	buf := make([]byte, len(data))
	copy(buf, data)
	return PendingFile{Name: name, Type: mimeType, Data: buf}
}

// IsImage reports whether the declared type is an image/* type
func (f PendingFile) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(f.Type)), "image/")
}

// Size returns the length of the blob in bytes
func (f PendingFile) Size() int {
	return len(f.Data)
}
