package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/submission-intake/internal/core/domain"
)

// Storage keeps blobs as files under <base>/<container>/<blob>.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) Download(_ context.Context, containerName, blobName string) (io.ReadCloser, error) {
	path, err := s.resolve(containerName, blobName)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrBlobNotFound, "download blob", fmt.Errorf("%s/%s", containerName, blobName))
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

func (s *Storage) resolve(containerName, blobName string) (string, error) {
	if strings.TrimSpace(containerName) == "" || strings.TrimSpace(blobName) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve blob path", errors.New("container and blob name are required"))
	}
	if strings.Contains(containerName, "..") || strings.Contains(blobName, "..") {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve blob path", fmt.Errorf("invalid path segment in %s/%s", containerName, blobName))
	}
	return filepath.Join(s.basePath, containerName, filepath.FromSlash(blobName)), nil
}
