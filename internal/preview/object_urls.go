package preview

import (
	"strings"
	"sync"

	"github.com/anime-shed/image-drop-go/pkg/models"

	"github.com/google/uuid"
)

// ObjectURLScheme prefixes every URL handed out by ObjectURLs
const ObjectURLScheme = "blob:"

// ObjectURLs keeps file blobs addressable by a generated URL until revoked
type ObjectURLs struct {
	mu    sync.RWMutex
	blobs map[string]models.PendingFile
}

func NewObjectURLs() *ObjectURLs {
	return &ObjectURLs{blobs: map[string]models.PendingFile{}}
}

// Create registers file and returns its URL
func (o *ObjectURLs) Create(file models.PendingFile) string {
	url := ObjectURLScheme + uuid.NewString()
	o.mu.Lock()
	o.blobs[url] = file
	o.mu.Unlock()
	return url
}

// Resolve returns the blob behind url
func (o *ObjectURLs) Resolve(url string) (models.PendingFile, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	f, ok := o.blobs[url]
	return f, ok
}

// Revoke releases url. Revoking an unknown URL is a no-op.
func (o *ObjectURLs) Revoke(url string) {
	o.mu.Lock()
	delete(o.blobs, url)
	o.mu.Unlock()
}

// Len returns the number of live URLs
func (o *ObjectURLs) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.blobs)
}

// ObjectID strips the scheme from an object URL
func ObjectID(url string) string {
	return strings.TrimPrefix(url, ObjectURLScheme)
}
