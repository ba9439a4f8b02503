package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/anime-shed/image-drop-go/internal/repository"
	"github.com/anime-shed/image-drop-go/pkg/models"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// maxBlobBytes caps a single downloaded blob
const maxBlobBytes = 32 << 20

// AzureSource selects every blob under a prefix of one container
type AzureSource struct {
	client    *azblob.Client
	container string
	prefix    string
}

// NewAzureSource connects with a shared key
func NewAzureSource(accountName, accountKey, container, prefix string) (*AzureSource, error) {
	if container == "" {
		return nil, fmt.Errorf("%w: container name is required", repository.ErrSourceUnavailable)
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net/", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}

	return &AzureSource{client: client, container: container, prefix: prefix}, nil
}

func (s *AzureSource) Describe() string {
	return "azure:" + path.Join(s.container, s.prefix)
}

// Files lists the blobs in name order and downloads each one
func (s *AzureSource) Files(ctx context.Context) ([]models.PendingFile, error) {
	opts := &azblob.ListBlobsFlatOptions{}
	if s.prefix != "" {
		opts.Prefix = &s.prefix
	}

	var files []models.PendingFile
	pager := s.client.NewListBlobsFlatPager(s.container, opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: list %s: %v", repository.ErrSourceUnavailable, s.container, err)
		}
		if page.Segment == nil {
			continue
		}
		for _, item := range page.Segment.BlobItems {
			if item == nil || item.Name == nil || strings.HasSuffix(*item.Name, "/") {
				continue
			}

			data, err := s.download(ctx, *item.Name)
			if err != nil {
				return nil, err
			}

			name := path.Base(*item.Name)
			contentType := ""
			if item.Properties != nil && item.Properties.ContentType != nil {
				contentType = *item.Properties.ContentType
			}
			if contentType == "" || contentType == "application/octet-stream" {
				contentType = repository.DetectContentType(name, data)
			}

			files = append(files, models.PendingFile{Name: name, Type: contentType, Data: data})
		}
	}

	if len(files) == 0 {
		return nil, repository.ErrNoFiles
	}
	return files, nil
}

func (s *AzureSource) download(ctx context.Context, blobName string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, blobName, nil)
	if err != nil {
		return nil, fmt.Errorf("download %s failed: %w", blobName, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s failed: %w", blobName, err)
	}
	if len(data) > maxBlobBytes {
		return nil, fmt.Errorf("blob %s exceeds %d bytes", blobName, maxBlobBytes)
	}
	return data, nil
}
