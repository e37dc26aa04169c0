package blobstore

import (
	"context"
	"github.com/ATenderholt/rainbow-webhook/internal/domain"
	"io"
)

// BlobStore is the full capability set of an object store. Decorators
// implement every method so the forwarded surface stays explicit.
type BlobStore interface {
	ListContainers(ctx context.Context) ([]domain.ContainerMetadata, error)
	ContainerExists(ctx context.Context, container string) (bool, error)
	CreateContainer(ctx context.Context, container string) (bool, error)
	DeleteContainer(ctx context.Context, container string) error
	List(ctx context.Context, container string, options domain.ListOptions) (domain.PageSet, error)

	BlobExists(ctx context.Context, container, name string) (bool, error)
	PutBlob(ctx context.Context, container string, blob *domain.Blob) (string, error)
	PutBlobWithOptions(ctx context.Context, container string, blob *domain.Blob, options domain.PutOptions) (string, error)
	BlobMetadata(ctx context.Context, container, name string) (domain.BlobMetadata, error)
	GetBlob(ctx context.Context, container, name string) (*domain.Blob, error)
	RemoveBlob(ctx context.Context, container, name string) error
	CopyBlob(ctx context.Context, fromContainer, fromName, toContainer, toName string, options domain.CopyOptions) (string, error)

	InitiateMultipartUpload(ctx context.Context, container string, metadata domain.BlobMetadata) (domain.MultipartUpload, error)
	UploadMultipartPart(ctx context.Context, mpu domain.MultipartUpload, partNumber int, payload io.Reader) (domain.MultipartPart, error)
	ListMultipartUpload(ctx context.Context, mpu domain.MultipartUpload) ([]domain.MultipartPart, error)
	ListMultipartUploads(ctx context.Context, container string) ([]domain.MultipartUpload, error)
	AbortMultipartUpload(ctx context.Context, mpu domain.MultipartUpload) error
	CompleteMultipartUpload(ctx context.Context, mpu domain.MultipartUpload, parts []domain.MultipartPart) (string, error)
}
