package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/anime-shed/image-drop-go/internal/config"
	apperrors "github.com/anime-shed/image-drop-go/internal/errors"
	"github.com/anime-shed/image-drop-go/internal/logger"
	"github.com/anime-shed/image-drop-go/internal/observer"
	"github.com/anime-shed/image-drop-go/internal/preview"
	"github.com/anime-shed/image-drop-go/internal/render"
	"github.com/anime-shed/image-drop-go/internal/repository"
	"github.com/anime-shed/image-drop-go/internal/widget"
	"github.com/anime-shed/image-drop-go/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const pageHeader = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Image Drop</title></head>
<body>
`

const pageFooter = `
</body>
</html>
`

// Dependencies are the components the drop server exposes
type Dependencies struct {
	Widget   *widget.Widget
	Document *render.Document
	Objects  *preview.ObjectURLs
	Metrics  *observer.MetricsObserver
	// Root bounds every batch started by a drop, including the ones that
	// outlive their request. Cancelling it aborts their uploads.
	Root context.Context
}

func NewHandler(deps Dependencies, cfg *config.Config) http.Handler {
	root := deps.Root
	if root == nil {
		root = context.Background()
	}

	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck(deps.Widget))
	r.POST("/drop", dropFiles(root, deps.Widget))
	r.GET("/gallery", galleryHTML(deps))
	r.GET("/gallery.json", galleryJSON(deps))
	r.GET("/blob/:id", objectBlob(deps.Objects))
	r.GET("/metrics", metrics(deps.Metrics))

	return r
}

// dropFiles treats the multipart "file" fields of the request as one drop
// on the widget. With ?wait=true the response carries every outcome.
func dropFiles(root context.Context, w *widget.Widget) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		// Log request start
		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("Processing drop request")

		form, err := c.MultipartForm()
		if err != nil {
			if isBodyTooLarge(err) {
				respondError(c, http.StatusRequestEntityTooLarge, "request too large", err)
				return
			}
			respondError(c, http.StatusBadRequest, "invalid multipart form", err)
			return
		}

		files, err := readFiles(form.File["file"])
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid file part", err)
			return
		}
		if len(files) == 0 {
			err := apperrors.NewValidationError("No file part", repository.ErrNoFiles)
			respondError(c, err.StatusCode, "no files", err)
			return
		}

		wait := c.Query("wait") == "true"

		ctx, release := batchContext(root, c.Request.Context(), wait)
		defer release()
		batch := w.HandleFiles(ctx, widget.FileList(files))

		resp := models.DropResponse{
			BatchID:  batch.ID,
			Accepted: batch.Accepted(),
			Rejected: batch.Rejected(),
		}

		if !wait {
			c.JSON(http.StatusAccepted, resp)
			return
		}

		outcomes, err := batch.Wait(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusRequestTimeout, "drop interrupted", apperrors.NewCanceledError("client went away", err))
			return
		}
		resp.Outcomes = outcomes

		logger.WithFields(logrus.Fields{
			"batch_id":           batch.ID,
			"files":              len(files),
			"accepted":           resp.Accepted,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Drop completed")

		c.JSON(http.StatusOK, resp)
	}
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

// batchContext picks the context a drop runs under. A drop outlives its
// request unless the client waits for it; either way it ends with root.
func batchContext(root, request context.Context, wait bool) (context.Context, context.CancelFunc) {
	if !wait {
		return root, func() {}
	}
	ctx, cancel := context.WithCancel(request)
	stop := context.AfterFunc(root, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// readFiles loads each part keeping its declared content type
func readFiles(headers []*multipart.FileHeader) ([]models.PendingFile, error) {
	files := make([]models.PendingFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, apperrors.NewValidationError("cannot open file part", err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, apperrors.NewValidationError("cannot read file part", err)
		}

		declared := fh.Header.Get("Content-Type")
		if declared == "" {
			declared = repository.DetectContentType(fh.Filename, data)
		}
		files = append(files, models.NewPendingFile(fh.Filename, declared, data))
	}
	return files, nil
}

func snapshot(deps Dependencies) render.Node {
	var node render.Node
	deps.Widget.Render(func() {
		node = deps.Document.Snapshot()
	})
	return node
}

func galleryHTML(deps Dependencies) gin.HandlerFunc {
	rewrite := render.WithURLRewriter(func(src string) string {
		if strings.HasPrefix(src, preview.ObjectURLScheme) {
			return "/blob/" + preview.ObjectID(src)
		}
		return src
	})

	return func(c *gin.Context) {
		var sb strings.Builder
		sb.WriteString(pageHeader)
		if err := render.WriteHTML(&sb, snapshot(deps), rewrite, render.WithIndent("  ")); err != nil {
			_ = c.Error(apperrors.NewInternalError("failed to render gallery", err))
			return
		}
		sb.WriteString(pageFooter)
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(sb.String()))
	}
}

func galleryJSON(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, snapshot(deps))
	}
}

func objectBlob(objects *preview.ObjectURLs) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, ok := objects.Resolve(preview.ObjectURLScheme + c.Param("id"))
		if !ok {
			err := apperrors.NewNotFoundError("object URL revoked or unknown", repository.ErrFileNotFound)
			respondError(c, err.StatusCode, "blob not found", err)
			return
		}
		c.Data(http.StatusOK, file.Type, file.Data)
	}
}

func metrics(m *observer.MetricsObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.JSON(http.StatusOK, observer.Metrics{})
			return
		}
		c.JSON(http.StatusOK, m.GetMetrics())
	}
}

func healthCheck(w *widget.Widget) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "available",
			"version": "1.0.0",
			"mode":    w.Mode(),
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last().Err
			respondError(c, determineStatusCode(err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	if _, ok := apperrors.As(err); ok {
		return apperrors.GetStatusCode(err)
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
