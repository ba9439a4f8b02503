package preview

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/anime-shed/image-drop-go/pkg/models"

	"github.com/patrickmn/go-cache"
)

// Preview is a displayable image source for one file. Width and Height are
// zero when the format cannot be decoded locally.
type Preview struct {
	Src    string
	Type   string
	Width  int
	Height int
}

// Previewer turns file bytes into data URLs off the caller's goroutine
type Previewer struct {
	pool  *WorkerPool
	cache *cache.Cache
}

// NewPreviewer starts a previewer backed by a pool of the given size
func NewPreviewer(workers int) *Previewer {
	pool := NewWorkerPool(workers)
	pool.Start()
	return &Previewer{
		pool:  pool,
		cache: cache.New(30*time.Minute, time.Hour),
	}
}

// Preview decodes file asynchronously and hands the result to done. It
// returns false when the previewer has been closed and done will not run.
func (p *Previewer) Preview(file models.PendingFile, done func(Preview)) bool {
	return p.pool.Submit(func() {
		done(p.Decode(file))
	})
}

// Decode builds the preview synchronously, reusing cached results for
// identical content
func (p *Previewer) Decode(file models.PendingFile) Preview {
	key := cacheKey(file)
	if cached, ok := p.cache.Get(key); ok {
		return cached.(Preview)
	}

	pv := Preview{
		Src:  DataURL(file.Type, file.Data),
		Type: file.Type,
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(file.Data)); err == nil {
		pv.Width, pv.Height = cfg.Width, cfg.Height
	}

	p.cache.Set(key, pv, cache.DefaultExpiration)
	return pv
}

// Wait blocks until every submitted preview has been delivered
func (p *Previewer) Wait() {
	p.pool.Wait()
}

// Close stops accepting new previews
func (p *Previewer) Close() {
	p.pool.Close()
}

// Stats exposes the pool counters
func (p *Previewer) Stats() PoolStats {
	return p.pool.GetStats()
}

// DataURL encodes data as an RFC 2397 base64 data URL
func DataURL(mimeType string, data []byte) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func cacheKey(file models.PendingFile) string {
	h := sha256.New()
	h.Write([]byte(file.Type))
	h.Write([]byte{0})
	h.Write(file.Data)
	return hex.EncodeToString(h.Sum(nil))
}
