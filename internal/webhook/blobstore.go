package webhook

import (
	"context"
	"github.com/ATenderholt/rainbow-webhook/internal/blobstore"
	"github.com/ATenderholt/rainbow-webhook/internal/domain"
	"go.uber.org/zap"
	"io"
)

// BlobStore forwards every operation to a delegate and, after a put, copy
// or multipart completion succeeds, sends a notification for the written
// object. Notification failures are logged and never returned.
type BlobStore struct {
	delegate blobstore.BlobStore
	notifier Notifier
	logger   *zap.SugaredLogger
}

var _ blobstore.BlobStore = (*BlobStore)(nil)

func NewBlobStore(delegate blobstore.BlobStore, notifier Notifier, log *zap.SugaredLogger) (*BlobStore, error) {
	if delegate == nil {
		return nil, ErrNilDelegate
	}

	if notifier == nil {
		return nil, ErrNilNotifier
	}

	if log == nil {
		log = logger
	}

	return &BlobStore{
		delegate: delegate,
		notifier: notifier,
		logger:   log,
	}, nil
}

func (s *BlobStore) sendEvent(ctx context.Context, name, container, key string) {
	event := domain.NotificationEvent{
		Bucket: container,
		Key:    key,
		Event:  name,
	}

	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Errorw("Unable to deliver notification",
			"event", event.Event,
			"bucket", event.Bucket,
			"key", event.Key,
			"error", err,
		)
	}
}

func (s *BlobStore) PutBlob(ctx context.Context, container string, blob *domain.Blob) (string, error) {
	result, err := s.delegate.PutBlob(ctx, container, blob)
	if err != nil {
		return result, err
	}

	s.sendEvent(ctx, domain.ObjectCreatedPut, container, blob.Metadata.Name)
	return result, nil
}

func (s *BlobStore) PutBlobWithOptions(ctx context.Context, container string, blob *domain.Blob, options domain.PutOptions) (string, error) {
	result, err := s.delegate.PutBlobWithOptions(ctx, container, blob, options)
	if err != nil {
		return result, err
	}

	s.sendEvent(ctx, domain.ObjectCreatedPut, container, blob.Metadata.Name)
	return result, nil
}

func (s *BlobStore) CopyBlob(ctx context.Context, fromContainer, fromName, toContainer, toName string, options domain.CopyOptions) (string, error) {
	result, err := s.delegate.CopyBlob(ctx, fromContainer, fromName, toContainer, toName, options)
	if err != nil {
		return result, err
	}

	s.sendEvent(ctx, domain.ObjectCreatedCopy, toContainer, toName)
	return result, nil
}

func (s *BlobStore) CompleteMultipartUpload(ctx context.Context, mpu domain.MultipartUpload, parts []domain.MultipartPart) (string, error) {
	result, err := s.delegate.CompleteMultipartUpload(ctx, mpu, parts)
	if err != nil {
		return result, err
	}

	s.sendEvent(ctx, domain.ObjectCreatedCompleteMultipartUpload, mpu.ContainerName, mpu.BlobName)
	return result, nil
}

func (s *BlobStore) ListContainers(ctx context.Context) ([]domain.ContainerMetadata, error) {
	return s.delegate.ListContainers(ctx)
}

func (s *BlobStore) ContainerExists(ctx context.Context, container string) (bool, error) {
	return s.delegate.ContainerExists(ctx, container)
}

func (s *BlobStore) CreateContainer(ctx context.Context, container string) (bool, error) {
	return s.delegate.CreateContainer(ctx, container)
}

func (s *BlobStore) DeleteContainer(ctx context.Context, container string) error {
	return s.delegate.DeleteContainer(ctx, container)
}

func (s *BlobStore) List(ctx context.Context, container string, options domain.ListOptions) (domain.PageSet, error) {
	return s.delegate.List(ctx, container, options)
}

func (s *BlobStore) BlobExists(ctx context.Context, container, name string) (bool, error) {
	return s.delegate.BlobExists(ctx, container, name)
}

func (s *BlobStore) BlobMetadata(ctx context.Context, container, name string) (domain.BlobMetadata, error) {
	return s.delegate.BlobMetadata(ctx, container, name)
}

func (s *BlobStore) GetBlob(ctx context.Context, container, name string) (*domain.Blob, error) {
	return s.delegate.GetBlob(ctx, container, name)
}

func (s *BlobStore) RemoveBlob(ctx context.Context, container, name string) error {
	return s.delegate.RemoveBlob(ctx, container, name)
}

func (s *BlobStore) InitiateMultipartUpload(ctx context.Context, container string, metadata domain.BlobMetadata) (domain.MultipartUpload, error) {
	return s.delegate.InitiateMultipartUpload(ctx, container, metadata)
}

func (s *BlobStore) UploadMultipartPart(ctx context.Context, mpu domain.MultipartUpload, partNumber int, payload io.Reader) (domain.MultipartPart, error) {
	return s.delegate.UploadMultipartPart(ctx, mpu, partNumber, payload)
}

func (s *BlobStore) ListMultipartUpload(ctx context.Context, mpu domain.MultipartUpload) ([]domain.MultipartPart, error) {
	return s.delegate.ListMultipartUpload(ctx, mpu)
}

func (s *BlobStore) ListMultipartUploads(ctx context.Context, container string) ([]domain.MultipartUpload, error) {
	return s.delegate.ListMultipartUploads(ctx, container)
}

func (s *BlobStore) AbortMultipartUpload(ctx context.Context, mpu domain.MultipartUpload) error {
	return s.delegate.AbortMultipartUpload(ctx, mpu)
}
