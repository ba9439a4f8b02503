package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anime-shed/image-drop-go/pkg/models"

	"github.com/gabriel-vasile/mimetype"
)

// LocalSource reads files from disk. Directories are expanded one level deep,
// in lexical order; hidden entries are skipped.
type LocalSource struct {
	paths []string
}

func NewLocalSource(paths ...string) *LocalSource {
	return &LocalSource{paths: paths}
}

func (s *LocalSource) Describe() string {
	return "local:" + strings.Join(s.paths, ",")
}

// Files loads every path. Order follows the arguments.
func (s *LocalSource) Files(ctx context.Context) ([]models.PendingFile, error) {
	if len(s.paths) == 0 {
		return nil, ErrNoFiles
	}

	var files []models.PendingFile
	for _, p := range s.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrFileNotFound, p)
			}
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}

		if !info.IsDir() {
			f, err := readFile(p)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", p, err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			f, err := readFile(filepath.Join(p, e.Name()))
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
	}

	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	return files, nil
}

func readFile(path string) (models.PendingFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.PendingFile{}, fmt.Errorf("read %s: %w", path, err)
	}
	name := filepath.Base(path)
	return models.PendingFile{
		Name: name,
		Type: DetectContentType(name, data),
		Data: data,
	}, nil
}

// DetectContentType sniffs data and falls back to the file extension when the
// content is not recognised
func DetectContentType(name string, data []byte) string {
	detected := mimetype.Detect(data)
	if detected != nil && !detected.Is("application/octet-stream") {
		return detected.String()
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
