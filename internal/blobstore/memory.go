package blobstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"github.com/ATenderholt/rainbow-webhook/internal/domain"
	"github.com/google/uuid"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	DefaultMaxKeys = 1000
	MaxPartNumber  = 10000
)

type memoryBlob struct {
	metadata domain.BlobMetadata
	data     []byte
}

type memoryContainer struct {
	created time.Time
	blobs   map[string]memoryBlob
}

type memoryPart struct {
	part domain.MultipartPart
	sum  [md5.Size]byte
	data []byte
}

type memoryUpload struct {
	upload domain.MultipartUpload
	parts  map[int]memoryPart
}

// MemoryBlobStore keeps containers, blobs and in-progress multipart uploads
// in process memory.
type MemoryBlobStore struct {
	sync.RWMutex
	containers map[string]*memoryContainer
	uploads    map[string]*memoryUpload
	now        func() time.Time
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{
		containers: make(map[string]*memoryContainer),
		uploads:    make(map[string]*memoryUpload),
		now:        time.Now,
	}
}

func (s *MemoryBlobStore) ListContainers(_ context.Context) ([]domain.ContainerMetadata, error) {
	s.RLock()
	defer s.RUnlock()

	result := make([]domain.ContainerMetadata, 0, len(s.containers))
	for name, c := range s.containers {
		result = append(result, domain.ContainerMetadata{Name: name, CreationDate: c.created})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result, nil
}

func (s *MemoryBlobStore) ContainerExists(_ context.Context, container string) (bool, error) {
	s.RLock()
	defer s.RUnlock()

	_, ok := s.containers[container]
	return ok, nil
}

func (s *MemoryBlobStore) CreateContainer(_ context.Context, container string) (bool, error) {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.containers[container]; ok {
		return false, nil
	}

	logger.Debugf("Creating container %s", container)
	s.containers[container] = &memoryContainer{
		created: s.now(),
		blobs:   make(map[string]memoryBlob),
	}

	return true, nil
}

func (s *MemoryBlobStore) DeleteContainer(_ context.Context, container string) error {
	s.Lock()
	defer s.Unlock()

	c, ok := s.containers[container]
	if !ok {
		return domain.ContainerNotFoundError{Container: container}
	}

	if len(c.blobs) > 0 {
		return domain.ContainerNotEmptyError{Container: container}
	}

	for id, u := range s.uploads {
		if u.upload.ContainerName == container {
			delete(s.uploads, id)
		}
	}

	delete(s.containers, container)
	return nil
}

func (s *MemoryBlobStore) List(_ context.Context, container string, options domain.ListOptions) (domain.PageSet, error) {
	s.RLock()
	defer s.RUnlock()

	c, ok := s.containers[container]
	if !ok {
		return domain.PageSet{}, domain.ContainerNotFoundError{Container: container}
	}

	maxKeys := options.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	names := make([]string, 0, len(c.blobs))
	for name := range c.blobs {
		names = append(names, name)
	}
	sort.Strings(names)

	var page domain.PageSet
	prefixes := make(map[string]bool)

	for _, name := range names {
		if !strings.HasPrefix(name, options.Prefix) {
			continue
		}

		if options.Marker != "" && name <= options.Marker {
			continue
		}

		blob := c.blobs[name]
		item := domain.StorageMetadata{
			Name:         name,
			Size:         blob.metadata.ContentLength,
			ETag:         blob.metadata.ETag,
			LastModified: blob.metadata.LastModified,
		}

		if options.Delimiter != "" {
			rest := name[len(options.Prefix):]
			if i := strings.Index(rest, options.Delimiter); i >= 0 {
				commonPrefix := options.Prefix + rest[:i+len(options.Delimiter)]
				if prefixes[commonPrefix] {
					continue
				}
				prefixes[commonPrefix] = true

				if options.Marker != "" && commonPrefix <= options.Marker {
					continue
				}

				item = domain.StorageMetadata{Name: commonPrefix, IsPrefix: true}
			}
		}

		if len(page.Items) == maxKeys {
			page.IsTruncated = true
			page.NextMarker = page.Items[len(page.Items)-1].Name
			break
		}

		page.Items = append(page.Items, item)
	}

	return page, nil
}

func (s *MemoryBlobStore) BlobExists(_ context.Context, container, name string) (bool, error) {
	s.RLock()
	defer s.RUnlock()

	c, ok := s.containers[container]
	if !ok {
		return false, domain.ContainerNotFoundError{Container: container}
	}

	_, ok = c.blobs[name]
	return ok, nil
}

func (s *MemoryBlobStore) PutBlob(ctx context.Context, container string, blob *domain.Blob) (string, error) {
	return s.PutBlobWithOptions(ctx, container, blob, domain.PutOptions{})
}

// PutBlobWithOptions stores the payload in a single piece; the Multipart
// option only matters to remote stores.
func (s *MemoryBlobStore) PutBlobWithOptions(_ context.Context, container string, blob *domain.Blob, _ domain.PutOptions) (string, error) {
	var data []byte
	if blob.Payload != nil {
		var err error
		data, err = io.ReadAll(blob.Payload)
		if err != nil {
			return "", domain.NewStoreError(fmt.Sprintf("read payload for %s/%s", container, blob.Metadata.Name), err)
		}
	}

	sum := md5.Sum(data)
	etag := hex.EncodeToString(sum[:])

	s.Lock()
	defer s.Unlock()

	c, ok := s.containers[container]
	if !ok {
		return "", domain.ContainerNotFoundError{Container: container}
	}

	metadata := copyMetadata(blob.Metadata)
	metadata.ContentLength = int64(len(data))
	metadata.ETag = etag
	metadata.LastModified = s.now()

	c.blobs[metadata.Name] = memoryBlob{metadata: metadata, data: data}
	logger.Debugf("Stored %s/%s (%d bytes, etag %s)", container, metadata.Name, len(data), etag)

	return etag, nil
}

func (s *MemoryBlobStore) lookup(container, name string) (memoryBlob, error) {
	c, ok := s.containers[container]
	if !ok {
		return memoryBlob{}, domain.ContainerNotFoundError{Container: container}
	}

	blob, ok := c.blobs[name]
	if !ok {
		return memoryBlob{}, domain.KeyNotFoundError{Container: container, Key: name}
	}

	return blob, nil
}

func (s *MemoryBlobStore) BlobMetadata(_ context.Context, container, name string) (domain.BlobMetadata, error) {
	s.RLock()
	defer s.RUnlock()

	blob, err := s.lookup(container, name)
	if err != nil {
		return domain.BlobMetadata{}, err
	}

	return copyMetadata(blob.metadata), nil
}

func (s *MemoryBlobStore) GetBlob(_ context.Context, container, name string) (*domain.Blob, error) {
	s.RLock()
	defer s.RUnlock()

	blob, err := s.lookup(container, name)
	if err != nil {
		return nil, err
	}

	return &domain.Blob{
		Metadata: copyMetadata(blob.metadata),
		Payload:  bytes.NewReader(blob.data),
	}, nil
}

func (s *MemoryBlobStore) RemoveBlob(_ context.Context, container, name string) error {
	s.Lock()
	defer s.Unlock()

	c, ok := s.containers[container]
	if !ok {
		return domain.ContainerNotFoundError{Container: container}
	}

	delete(c.blobs, name)
	return nil
}

func (s *MemoryBlobStore) CopyBlob(_ context.Context, fromContainer, fromName, toContainer, toName string, options domain.CopyOptions) (string, error) {
	s.Lock()
	defer s.Unlock()

	source, err := s.lookup(fromContainer, fromName)
	if err != nil {
		return "", err
	}

	if options.IfMatch != "" && strings.Trim(options.IfMatch, `"`) != source.metadata.ETag {
		return "", domain.PreconditionFailedError{Container: fromContainer, Key: fromName, ETag: options.IfMatch}
	}

	destination, ok := s.containers[toContainer]
	if !ok {
		return "", domain.ContainerNotFoundError{Container: toContainer}
	}

	metadata := copyMetadata(source.metadata)
	if options.ReplacesMetadata() {
		metadata.ContentType = options.ContentType
		metadata.UserMetadata = copyUserMetadata(options.UserMetadata)
	}
	metadata.Name = toName
	metadata.LastModified = s.now()

	destination.blobs[toName] = memoryBlob{metadata: metadata, data: source.data}
	logger.Debugf("Copied %s/%s to %s/%s", fromContainer, fromName, toContainer, toName)

	return metadata.ETag, nil
}

func (s *MemoryBlobStore) InitiateMultipartUpload(_ context.Context, container string, metadata domain.BlobMetadata) (domain.MultipartUpload, error) {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.containers[container]; !ok {
		return domain.MultipartUpload{}, domain.ContainerNotFoundError{Container: container}
	}

	upload := domain.MultipartUpload{
		ContainerName: container,
		BlobName:      metadata.Name,
		ID:            uuid.NewString(),
		Metadata:      copyMetadata(metadata),
	}

	s.uploads[upload.ID] = &memoryUpload{
		upload: upload,
		parts:  make(map[int]memoryPart),
	}

	logger.Debugf("Initiated multipart upload %s for %s/%s", upload.ID, container, metadata.Name)
	return upload, nil
}

func (s *MemoryBlobStore) findUpload(mpu domain.MultipartUpload) (*memoryUpload, error) {
	u, ok := s.uploads[mpu.ID]
	if !ok || u.upload.ContainerName != mpu.ContainerName || u.upload.BlobName != mpu.BlobName {
		return nil, domain.UploadNotFoundError{Container: mpu.ContainerName, Key: mpu.BlobName, UploadID: mpu.ID}
	}

	return u, nil
}

func (s *MemoryBlobStore) UploadMultipartPart(_ context.Context, mpu domain.MultipartUpload, partNumber int, payload io.Reader) (domain.MultipartPart, error) {
	if partNumber < 1 || partNumber > MaxPartNumber {
		return domain.MultipartPart{}, domain.InvalidPartError{
			UploadID:   mpu.ID,
			PartNumber: partNumber,
			Reason:     fmt.Sprintf("part number must be between 1 and %d", MaxPartNumber),
		}
	}

	data, err := io.ReadAll(payload)
	if err != nil {
		return domain.MultipartPart{}, domain.NewStoreError(fmt.Sprintf("read part %d of upload %s", partNumber, mpu.ID), err)
	}

	sum := md5.Sum(data)

	s.Lock()
	defer s.Unlock()

	u, err := s.findUpload(mpu)
	if err != nil {
		return domain.MultipartPart{}, err
	}

	part := domain.MultipartPart{
		PartNumber:   partNumber,
		Size:         int64(len(data)),
		ETag:         hex.EncodeToString(sum[:]),
		LastModified: s.now(),
	}

	u.parts[partNumber] = memoryPart{part: part, sum: sum, data: data}
	return part, nil
}

func (s *MemoryBlobStore) ListMultipartUpload(_ context.Context, mpu domain.MultipartUpload) ([]domain.MultipartPart, error) {
	s.RLock()
	defer s.RUnlock()

	u, err := s.findUpload(mpu)
	if err != nil {
		return nil, err
	}

	parts := make([]domain.MultipartPart, 0, len(u.parts))
	for _, p := range u.parts {
		parts = append(parts, p.part)
	}

	sort.Slice(parts, func(i, j int) bool {
		return parts[i].PartNumber < parts[j].PartNumber
	})

	return parts, nil
}

func (s *MemoryBlobStore) ListMultipartUploads(_ context.Context, container string) ([]domain.MultipartUpload, error) {
	s.RLock()
	defer s.RUnlock()

	if _, ok := s.containers[container]; !ok {
		return nil, domain.ContainerNotFoundError{Container: container}
	}

	var uploads []domain.MultipartUpload
	for _, u := range s.uploads {
		if u.upload.ContainerName == container {
			uploads = append(uploads, u.upload)
		}
	}

	sort.Slice(uploads, func(i, j int) bool {
		if uploads[i].BlobName == uploads[j].BlobName {
			return uploads[i].ID < uploads[j].ID
		}
		return uploads[i].BlobName < uploads[j].BlobName
	})

	return uploads, nil
}

func (s *MemoryBlobStore) AbortMultipartUpload(_ context.Context, mpu domain.MultipartUpload) error {
	s.Lock()
	defer s.Unlock()

	if _, err := s.findUpload(mpu); err != nil {
		return err
	}

	delete(s.uploads, mpu.ID)
	return nil
}

// CompleteMultipartUpload assembles the listed parts, which must be in
// ascending order, into one blob. The resulting ETag follows the S3
// convention of md5(part md5s) suffixed with the part count.
func (s *MemoryBlobStore) CompleteMultipartUpload(_ context.Context, mpu domain.MultipartUpload, parts []domain.MultipartPart) (string, error) {
	s.Lock()
	defer s.Unlock()

	u, err := s.findUpload(mpu)
	if err != nil {
		return "", err
	}

	if len(parts) == 0 {
		return "", domain.InvalidPartError{UploadID: mpu.ID, Reason: "at least one part is required"}
	}

	c, ok := s.containers[mpu.ContainerName]
	if !ok {
		return "", domain.ContainerNotFoundError{Container: mpu.ContainerName}
	}

	var data []byte
	sums := make([]byte, 0, len(parts)*md5.Size)
	previous := 0
	for _, requested := range parts {
		if requested.PartNumber <= previous {
			return "", domain.InvalidPartError{UploadID: mpu.ID, PartNumber: requested.PartNumber, Reason: "parts must be in ascending order"}
		}
		previous = requested.PartNumber

		stored, ok := u.parts[requested.PartNumber]
		if !ok {
			return "", domain.InvalidPartError{UploadID: mpu.ID, PartNumber: requested.PartNumber, Reason: "part was not uploaded"}
		}

		if requested.ETag != "" && strings.Trim(requested.ETag, `"`) != stored.part.ETag {
			return "", domain.InvalidPartError{UploadID: mpu.ID, PartNumber: requested.PartNumber, Reason: "etag does not match"}
		}

		data = append(data, stored.data...)
		sums = append(sums, stored.sum[:]...)
	}

	sum := md5.Sum(sums)
	etag := fmt.Sprintf("%s-%d", hex.EncodeToString(sum[:]), len(parts))

	metadata := copyMetadata(u.upload.Metadata)
	metadata.Name = u.upload.BlobName
	metadata.ContentLength = int64(len(data))
	metadata.ETag = etag
	metadata.LastModified = s.now()

	c.blobs[metadata.Name] = memoryBlob{metadata: metadata, data: data}
	delete(s.uploads, mpu.ID)

	logger.Debugf("Completed multipart upload %s for %s/%s with %d parts", mpu.ID, mpu.ContainerName, mpu.BlobName, len(parts))
	return etag, nil
}

func copyMetadata(metadata domain.BlobMetadata) domain.BlobMetadata {
	result := metadata
	result.UserMetadata = copyUserMetadata(metadata.UserMetadata)
	return result
}

func copyUserMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}

	result := make(map[string]string, len(m))
	for k, v := range m {
		result[k] = v
	}

	return result
}
