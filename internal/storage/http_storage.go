package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/anime-shed/image-drop-go/internal/errors"
	"github.com/anime-shed/image-drop-go/internal/logger"
	"github.com/anime-shed/image-drop-go/pkg/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// maxResponseBytes caps how much of an analysis response is read
const maxResponseBytes = 1 << 20

// UploadRequest is one file headed for the analysis endpoint
type UploadRequest struct {
	File  models.PendingFile
	Index int
	// SendIndex adds the "index" form field (gallery mode)
	SendIndex bool
}

// Uploader posts a file and returns the analysis text
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (models.AnalysisResult, error)
}

// HTTPUploaderOptions configures HTTPUploader
type HTTPUploaderOptions struct {
	Endpoint string
	// Timeout bounds a single request; zero means no timeout
	Timeout time.Duration
	// Interval spaces out request starts; zero disables pacing
	Interval time.Duration
	// LegacyAuthHeuristic reports every non-2xx status as "not logged in"
	LegacyAuthHeuristic bool
	// Client overrides the default client, mostly for tests
	Client *http.Client
}

// HTTPUploader implements Uploader with multipart POST requests. Requests are
// never retried.
type HTTPUploader struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	legacy   bool
}

// NewHTTPUploader creates an uploader for the given endpoint
func NewHTTPUploader(opts HTTPUploaderOptions) *HTTPUploader {
	client := opts.Client
	if client == nil {
		transport := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10, // a full batch goes to one host
			IdleConnTimeout:     30 * time.Second,

			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,

			MaxResponseHeaderBytes: 16 << 10,
		}
		client = &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		}
	}

	var limiter *rate.Limiter
	if opts.Interval > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Interval), 1)
	}

	return &HTTPUploader{
		endpoint: opts.Endpoint,
		client:   client,
		limiter:  limiter,
		legacy:   opts.LegacyAuthHeuristic,
	}
}

// Upload posts req.File and decodes the analysis response
func (u *HTTPUploader) Upload(ctx context.Context, req UploadRequest) (models.AnalysisResult, error) {
	if u.limiter != nil {
		if err := u.limiter.Wait(ctx); err != nil {
			return "", classifyRequestError(ctx, err)
		}
	}

	body, contentType, err := buildMultipart(req)
	if err != nil {
		return "", apperrors.NewInternalError("failed to build upload body", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, body)
	if err != nil {
		return "", apperrors.NewInternalError("invalid upload URL", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "Go-Image-Drop/1.0")

	start := time.Now()
	resp, err := u.client.Do(httpReq)
	if err != nil {
		return "", classifyRequestError(ctx, err)
	}
	defer resp.Body.Close()

	logger.WithFields(logrus.Fields{
		"file":        req.File.Name,
		"index":       req.Index,
		"status_code": resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Upload response received")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return "", u.classifyStatus(resp.StatusCode)
	}

	var payload models.UploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return "", apperrors.NewNetworkError(apperrors.MsgUploadFailed, resp.StatusCode,
			fmt.Errorf("failed to decode response: %w", err))
	}
	if payload.Error != "" {
		return "", apperrors.NewApplicationError(payload.Error)
	}
	return models.AnalysisResult(payload.Description), nil
}

func (u *HTTPUploader) classifyStatus(status int) error {
	cause := fmt.Errorf("upload rejected: status code %d", status)
	if u.legacy || status == http.StatusUnauthorized || status == http.StatusForbidden {
		return apperrors.NewUnauthorizedError(apperrors.MsgLoginRequired, status, cause)
	}
	return apperrors.NewNetworkError(apperrors.MsgUploadFailed, status, cause)
}

func classifyRequestError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled):
		return apperrors.NewCanceledError("upload cancelled", err)
	case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		return apperrors.NewTimeoutError("upload timed out", err)
	default:
		return apperrors.NewNetworkError(apperrors.MsgUploadFailed, 0, err)
	}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func buildMultipart(req UploadRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(req.File.Name)))
	contentType := req.File.Type
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.File.Data); err != nil {
		return nil, "", err
	}

	if req.SendIndex {
		if err := w.WriteField("index", strconv.Itoa(req.Index)); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
