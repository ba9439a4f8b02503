package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/anime-shed/image-drop-go/internal/errors"
	"github.com/anime-shed/image-drop-go/pkg/models"

	"github.com/gin-gonic/gin"
)

type receivedUpload struct {
	fileName    string
	contentType string
	data        []byte
	index       string
	hasIndex    bool
}

// newAnalysisServer fakes the /upload endpoint. respond decides the status
// and JSON body for each request.
func newAnalysisServer(t *testing.T, respond func(c *gin.Context, got receivedUpload)) (*httptest.Server, *int32) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var count int32
	r := gin.New()
	r.POST("/upload", func(c *gin.Context) {
		atomic.AddInt32(&count, 1)

		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file part"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)

		index, hasIndex := c.GetPostForm("index")
		respond(c, receivedUpload{
			fileName:    fh.Filename,
			contentType: fh.Header.Get("Content-Type"),
			data:        data,
			index:       index,
			hasIndex:    hasIndex,
		})
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, &count
}

func TestHTTPUploader_Success(t *testing.T) {
	var got receivedUpload
	server, count := newAnalysisServer(t, func(c *gin.Context, r receivedUpload) {
		got = r
		c.JSON(http.StatusOK, gin.H{"description": "This image contains: cat\nanimal"})
	})

	uploader := NewHTTPUploader(HTTPUploaderOptions{Endpoint: server.URL + "/upload"})
	result, err := uploader.Upload(context.Background(), UploadRequest{
		File:      models.NewPendingFile("cat.png", "image/png", []byte("png-bytes")),
		Index:     3,
		SendIndex: true,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result != "This image contains: cat\nanimal" {
		t.Errorf("Unexpected description: %q", result)
	}
	if atomic.LoadInt32(count) != 1 {
		t.Errorf("Expected 1 request, got %d", atomic.LoadInt32(count))
	}
	if got.fileName != "cat.png" || got.contentType != "image/png" || string(got.data) != "png-bytes" {
		t.Errorf("Unexpected upload: %+v", got)
	}
	if !got.hasIndex || got.index != "3" {
		t.Errorf("Expected index field 3, got %q (present=%v)", got.index, got.hasIndex)
	}
}

func TestHTTPUploader_NoIndexInSingleMode(t *testing.T) {
	var got receivedUpload
	server, _ := newAnalysisServer(t, func(c *gin.Context, r receivedUpload) {
		got = r
		c.JSON(http.StatusOK, gin.H{"description": "dog"})
	})

	uploader := NewHTTPUploader(HTTPUploaderOptions{Endpoint: server.URL + "/upload"})
	if _, err := uploader.Upload(context.Background(), UploadRequest{
		File: models.NewPendingFile("dog.jpg", "image/jpeg", []byte{0xff, 0xd8}),
	}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got.hasIndex {
		t.Error("Did not expect an index field")
	}
}

func TestHTTPUploader_ErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		legacy      bool
		wantType    apperrors.ErrorType
		wantMessage string
	}{
		{
			name:        "application error is verbatim",
			status:      http.StatusOK,
			body:        `{"error": "Invalid file type"}`,
			wantType:    apperrors.ErrorTypeApplication,
			wantMessage: "Invalid file type",
		},
		{
			name:        "401 means login required",
			status:      http.StatusUnauthorized,
			body:        `{"error": "login"}`,
			wantType:    apperrors.ErrorTypeUnauthorized,
			wantMessage: apperrors.MsgLoginRequired,
		},
		{
			name:        "403 means login required",
			status:      http.StatusForbidden,
			wantType:    apperrors.ErrorTypeUnauthorized,
			wantMessage: apperrors.MsgLoginRequired,
		},
		{
			name:        "500 is a generic upload error",
			status:      http.StatusInternalServerError,
			wantType:    apperrors.ErrorTypeNetwork,
			wantMessage: apperrors.MsgUploadFailed,
		},
		{
			name:        "400 under the legacy heuristic means login required",
			status:      http.StatusBadRequest,
			body:        `{"error": "Invalid file type"}`,
			legacy:      true,
			wantType:    apperrors.ErrorTypeUnauthorized,
			wantMessage: apperrors.MsgLoginRequired,
		},
		{
			name:        "malformed JSON is a generic upload error",
			status:      http.StatusOK,
			body:        `<html>oops</html>`,
			wantType:    apperrors.ErrorTypeNetwork,
			wantMessage: apperrors.MsgUploadFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, count := newAnalysisServer(t, func(c *gin.Context, _ receivedUpload) {
				c.Data(tt.status, "application/json", []byte(tt.body))
			})

			uploader := NewHTTPUploader(HTTPUploaderOptions{
				Endpoint:            server.URL + "/upload",
				LegacyAuthHeuristic: tt.legacy,
			})
			_, err := uploader.Upload(context.Background(), UploadRequest{
				File: models.NewPendingFile("a.png", "image/png", []byte{1}),
			})

			if err == nil {
				t.Fatal("Expected error, but got none")
			}
			if !apperrors.IsType(err, tt.wantType) {
				t.Errorf("Expected %s error, got: %v", tt.wantType, err)
			}
			if msg := apperrors.UserMessage(err); msg != tt.wantMessage {
				t.Errorf("Expected message %q, got %q", tt.wantMessage, msg)
			}
			// Never retried
			if atomic.LoadInt32(count) != 1 {
				t.Errorf("Expected exactly 1 request, got %d", atomic.LoadInt32(count))
			}
		})
	}
}

func TestHTTPUploader_StatusCodeKept(t *testing.T) {
	server, _ := newAnalysisServer(t, func(c *gin.Context, _ receivedUpload) {
		c.Status(http.StatusBadGateway)
	})

	uploader := NewHTTPUploader(HTTPUploaderOptions{Endpoint: server.URL + "/upload"})
	_, err := uploader.Upload(context.Background(), UploadRequest{File: models.PendingFile{Name: "a.png", Type: "image/png"}})

	if got := apperrors.GetStatusCode(err); got != http.StatusBadGateway {
		t.Errorf("Expected status 502 to be kept, got %d", got)
	}
}

func TestHTTPUploader_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if ok {
			conn, _, _ := hj.Hijack()
			conn.Close()
		}
	}))
	defer server.Close()

	uploader := NewHTTPUploader(HTTPUploaderOptions{Endpoint: server.URL + "/upload"})
	_, err := uploader.Upload(context.Background(), UploadRequest{File: models.PendingFile{Name: "a.png", Type: "image/png"}})

	if !apperrors.IsType(err, apperrors.ErrorTypeNetwork) {
		t.Fatalf("Expected network error, got: %v", err)
	}
	if apperrors.UserMessage(err) != apperrors.MsgUploadFailed {
		t.Errorf("Unexpected message: %s", apperrors.UserMessage(err))
	}
}

func TestHTTPUploader_Cancel(t *testing.T) {
	release := make(chan struct{})
	server, _ := newAnalysisServer(t, func(c *gin.Context, _ receivedUpload) {
		select {
		case <-release:
		case <-c.Request.Context().Done():
		}
		c.JSON(http.StatusOK, gin.H{"description": "late"})
	})
	defer close(release)

	uploader := NewHTTPUploader(HTTPUploaderOptions{Endpoint: server.URL + "/upload"})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := uploader.Upload(ctx, UploadRequest{File: models.PendingFile{Name: "a.png", Type: "image/png"}})
	if !apperrors.IsType(err, apperrors.ErrorTypeCanceled) {
		t.Fatalf("Expected canceled error, got: %v", err)
	}
}

func TestHTTPUploader_Timeout(t *testing.T) {
	release := make(chan struct{})
	server, _ := newAnalysisServer(t, func(c *gin.Context, _ receivedUpload) {
		select {
		case <-release:
		case <-c.Request.Context().Done():
		}
	})
	defer close(release)

	uploader := NewHTTPUploader(HTTPUploaderOptions{
		Endpoint: server.URL + "/upload",
		Timeout:  50 * time.Millisecond,
	})
	_, err := uploader.Upload(context.Background(), UploadRequest{File: models.PendingFile{Name: "a.png", Type: "image/png"}})
	if !apperrors.IsType(err, apperrors.ErrorTypeTimeout) {
		t.Fatalf("Expected timeout error, got: %v", err)
	}
}

func TestHTTPUploader_Interval(t *testing.T) {
	server, count := newAnalysisServer(t, func(c *gin.Context, _ receivedUpload) {
		c.JSON(http.StatusOK, gin.H{"description": "ok"})
	})

	uploader := NewHTTPUploader(HTTPUploaderOptions{
		Endpoint: server.URL + "/upload",
		Interval: 100 * time.Millisecond,
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := uploader.Upload(context.Background(), UploadRequest{File: models.PendingFile{Name: "a.png", Type: "image/png"}}); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}

	if elapsed := time.Since(start); elapsed < 190*time.Millisecond {
		t.Errorf("Expected pacing of about 200ms, took %v", elapsed)
	}
	if atomic.LoadInt32(count) != 3 {
		t.Errorf("Expected 3 requests, got %d", atomic.LoadInt32(count))
	}
}

func TestEscapeQuotes(t *testing.T) {
	if got := escapeQuotes(`my "cat".png`); got != `my \"cat\".png` {
		t.Errorf("Unexpected escape: %s", got)
	}
}
