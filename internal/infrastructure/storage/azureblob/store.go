// Package azureblob reads attachments from Azure Blob Storage.
package azureblob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/kirillkom/submission-intake/internal/core/domain"
)

type Store struct {
	client *azblob.Client
}

// New validates the connection string and creates the client. No request is
// made until the first call.
func New(connectionString string, opts *azblob.ClientOptions) (*Store, error) {
	if strings.TrimSpace(connectionString) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create blob client", errors.New("connection string is required"))
	}
	client, err := azblob.NewClientFromConnectionString(connectionString, opts)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Store{client: client}, nil
}

// EnsureContainer creates the container when it does not exist yet.
func (s *Store) EnsureContainer(ctx context.Context, containerName string) error {
	_, err := s.client.CreateContainer(ctx, containerName, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("create container %s: %w", containerName, err)
	}
	return nil
}

// Download returns a stream for the blob. The caller must close the reader.
func (s *Store) Download(ctx context.Context, containerName, blobName string) (io.ReadCloser, error) {
	if err := validateKey(containerName, blobName); err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, domain.WrapError(domain.ErrBlobNotFound, "download blob", fmt.Errorf("%s/%s", containerName, blobName))
		}
		return nil, domain.WrapError(domain.ErrTemporary, "download blob", fmt.Errorf("%s/%s: %w", containerName, blobName, err))
	}
	return resp.Body, nil
}

func validateKey(containerName, blobName string) error {
	if containerName == "" || blobName == "" {
		return domain.WrapError(domain.ErrInvalidInput, "download blob", errors.New("container and blob name are required"))
	}
	if strings.Contains(blobName, "..") {
		return domain.WrapError(domain.ErrInvalidInput, "download blob", fmt.Errorf("invalid path segment in %s", blobName))
	}
	return nil
}
