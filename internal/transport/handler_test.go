package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/anime-shed/image-drop-go/internal/config"
	apperrors "github.com/anime-shed/image-drop-go/internal/errors"
	"github.com/anime-shed/image-drop-go/internal/observer"
	"github.com/anime-shed/image-drop-go/internal/preview"
	"github.com/anime-shed/image-drop-go/internal/render"
	"github.com/anime-shed/image-drop-go/internal/storage"
	"github.com/anime-shed/image-drop-go/internal/strategy"
	"github.com/anime-shed/image-drop-go/internal/widget"
	"github.com/anime-shed/image-drop-go/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUploader struct{}

func (stubUploader) Upload(_ context.Context, req storage.UploadRequest) (models.AnalysisResult, error) {
	if req.File.Name == "locked.png" {
		return "", apperrors.NewUnauthorizedError(apperrors.MsgLoginRequired, http.StatusUnauthorized, nil)
	}
	return models.AnalysisResult("This image contains: cat\n<b>bold</b>"), nil
}

type part struct {
	name        string
	contentType string
	data        string
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+p.name+`"`)
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.data))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func newTestHandler(t *testing.T, mode string) (http.Handler, Dependencies) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	doc := render.NewDocument()
	objects := preview.NewObjectURLs()
	var s strategy.DisplayStrategy = strategy.NewGalleryStrategy(strategy.ViewOf(doc), 10)
	if mode == config.ModeSingle {
		s = strategy.NewSingleStrategy(strategy.ViewOf(doc), objects)
	}

	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(metrics)

	deps := Dependencies{
		Widget:   widget.New(widget.Options{Strategy: s, Uploader: stubUploader{}, Events: events}),
		Document: doc,
		Objects:  objects,
		Metrics:  metrics,
	}
	cfg := &config.Config{MaxRequestBodySize: 1 << 20}
	return NewHandler(deps, cfg), deps
}

func postDrop(t *testing.T, h http.Handler, query string, parts ...part) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, parts...)
	req := httptest.NewRequest(http.MethodPost, "/drop"+query, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	h, _ := newTestHandler(t, config.ModeGallery)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "available", body["status"])
	assert.Equal(t, "gallery", body["mode"])
}

func TestDrop_WaitReturnsOutcomes(t *testing.T) {
	h, _ := newTestHandler(t, config.ModeGallery)

	rec := postDrop(t, h, "?wait=true",
		part{name: "cat.png", contentType: "image/png", data: "png"},
		part{name: "notes.txt", contentType: "text/plain", data: "txt"},
		part{name: "locked.png", contentType: "image/png", data: "png"},
	)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.DropResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.BatchID)
	assert.Equal(t, 2, resp.Accepted)
	assert.Equal(t, 1, resp.Rejected)
	require.Len(t, resp.Outcomes, 3)

	assert.Equal(t, models.OutcomeRendered, resp.Outcomes[0].Status)
	assert.Equal(t, models.OutcomeRejected, resp.Outcomes[1].Status)
	assert.Equal(t, apperrors.MsgNotImage, resp.Outcomes[1].Error)
	assert.Equal(t, models.OutcomeErrored, resp.Outcomes[2].Status)
	assert.Equal(t, apperrors.MsgLoginRequired, resp.Outcomes[2].Error)
}

func TestDrop_Async(t *testing.T) {
	h, deps := newTestHandler(t, config.ModeGallery)

	rec := postDrop(t, h, "", part{name: "cat.png", contentType: "image/png", data: "png"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	deps.Widget.Wait()
	assert.Len(t, deps.Document.Gallery.Children(), 1)
}

func TestDrop_NoFiles(t *testing.T) {
	h, _ := newTestHandler(t, config.ModeGallery)

	rec := postDrop(t, h, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDrop_TooLarge(t *testing.T) {
	h, _ := newTestHandler(t, config.ModeGallery)

	rec := postDrop(t, h, "", part{name: "big.png", contentType: "image/png", data: strings.Repeat("x", 2<<20)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestGallery_HTMLEscapesAnalysis(t *testing.T) {
	h, deps := newTestHandler(t, config.ModeGallery)
	postDrop(t, h, "?wait=true", part{name: "cat.png", contentType: "image/png", data: "png"})
	deps.Widget.Wait()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gallery", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "cat.png")
	assert.Contains(t, body, "&lt;b&gt;bold&lt;/b&gt;")
	assert.NotContains(t, body, "<b>bold</b>")
}

func TestGallery_JSON(t *testing.T) {
	h, deps := newTestHandler(t, config.ModeGallery)
	postDrop(t, h, "?wait=true", part{name: "cat.png", contentType: "image/png", data: "png"})
	deps.Widget.Wait()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gallery.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var node render.Node
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &node))
	gallery, ok := node.FindByID(render.IDGallery)
	require.True(t, ok)
	require.Len(t, gallery.Children, 1)
	assert.Equal(t, "This image contains: cat", gallery.Children[0].FindByClass("section")[0].Text)
}

func TestObjectBlob_SingleMode(t *testing.T) {
	h, deps := newTestHandler(t, config.ModeSingle)
	postDrop(t, h, "?wait=true", part{name: "cat.png", contentType: "image/png", data: "png-bytes"})
	deps.Widget.Wait()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gallery", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `src="/blob/`)
	assert.NotContains(t, rec.Body.String(), preview.ObjectURLScheme)

	imgs := deps.Document.Gallery.Snapshot().FindByTag("img")
	require.Len(t, imgs, 1)
	id := preview.ObjectID(imgs[0].Attrs["src"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blob/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blob/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics(t *testing.T) {
	h, _ := newTestHandler(t, config.ModeGallery)
	postDrop(t, h, "?wait=true", part{name: "cat.png", contentType: "image/png", data: "png"})

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		var m observer.Metrics
		if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
			return false
		}
		return m.Batches == 1 && m.UploadsCompleted == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDetermineStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, determineStatusCode(apperrors.NewNotFoundError("x", nil)))
	assert.Equal(t, http.StatusGatewayTimeout, determineStatusCode(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, determineStatusCode(assert.AnError))
}

// stalledUploader blocks until its context ends
type stalledUploader struct {
	started chan struct{}
}

func (u stalledUploader) Upload(ctx context.Context, _ storage.UploadRequest) (models.AnalysisResult, error) {
	u.started <- struct{}{}
	<-ctx.Done()
	return "", apperrors.NewCanceledError("upload aborted", ctx.Err())
}

func TestDrop_WaitEndsWithRoot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	root, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	doc := render.NewDocument()
	uploader := stalledUploader{started: make(chan struct{}, 1)}
	h := NewHandler(Dependencies{
		Widget: widget.New(widget.Options{
			Strategy: strategy.NewGalleryStrategy(strategy.ViewOf(doc), 10),
			Uploader: uploader,
		}),
		Document: doc,
		Objects:  preview.NewObjectURLs(),
		Root:     root,
	}, &config.Config{MaxRequestBodySize: 1 << 20})

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- postDrop(t, h, "?wait=true", part{name: "cat.png", contentType: "image/png", data: "png"})
	}()

	<-uploader.started
	cancelRoot()

	select {
	case rec := <-done:
		require.Equal(t, http.StatusOK, rec.Code)
		var resp models.DropResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Outcomes, 1)
		assert.Equal(t, apperrors.MsgUploadAborted, resp.Outcomes[0].Error)
	case <-time.After(3 * time.Second):
		t.Fatal("waiting drop did not end with its root context")
	}
}

func TestBatchContext_Detached(t *testing.T) {
	root, cancelRoot := context.WithCancel(context.Background())
	request, cancelRequest := context.WithCancel(context.Background())

	ctx, release := batchContext(root, request, false)
	defer release()
	cancelRequest()
	assert.NoError(t, ctx.Err(), "detached drops survive their request")

	cancelRoot()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
