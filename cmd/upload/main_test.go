package main

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestUploadCommand_LocalDirectory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/upload", func(c *gin.Context) {
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file part"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"description": "analysed " + fh.Filename})
	})
	server := httptest.NewServer(r)
	defer server.Close()

	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"))
	writePNG(t, filepath.Join(dir, "b.png"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o600))

	t.Setenv("UPLOAD_URL", server.URL+"/upload")
	t.Setenv("PREVIEW_WORKERS", "1")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--output", "json", "--mode", " Gallery ", dir})
	require.NoError(t, cmd.Execute())

	body := out.String()
	assert.Contains(t, body, "analysed a.png")
	assert.Contains(t, body, "analysed b.png")
	assert.Contains(t, body, "Please upload an image file.")
}

func TestUploadCommand_BadOutput(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"))
	t.Setenv("UPLOAD_URL", "http://127.0.0.1:1/upload")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--output", "yaml", "--mode", "single", dir})
	assert.Error(t, cmd.Execute())
}

func TestUploadCommand_InvalidMode(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--mode", "carousel", "x.png"})
	assert.Error(t, cmd.Execute())
}
