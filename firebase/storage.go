package firebase

import (
	"context"
	"io"
)

// StorageClient abstracts object storage for dependency injection and testing.
type StorageClient interface {
	UploadProductImage(ctx context.Context, productID string, file io.Reader, filename, contentType string) (string, error)
	ImportProductImage(ctx context.Context, productID, imageURL string) (string, error)
	DeleteFile(ctx context.Context, objectPath string) error
	Bucket() string
}

var _ StorageClient = (*Storage)(nil)
