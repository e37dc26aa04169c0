package blobstore

import (
	"bytes"
	"context"
	"errors"
	"github.com/ATenderholt/rainbow-webhook/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"io"
	"net/url"
	"sort"
	"strings"
)

// S3BlobStore implements BlobStore on top of an S3 compatible service such
// as minio.
type S3BlobStore struct {
	client *s3.Client
	region string
}

func NewS3BlobStore(client *s3.Client, region string) *S3BlobStore {
	return &S3BlobStore{
		client: client,
		region: region,
	}
}

func (s *S3BlobStore) ListContainers(ctx context.Context) ([]domain.ContainerMetadata, error) {
	output, err := s.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, translateError("list buckets", "", "", err)
	}

	result := make([]domain.ContainerMetadata, 0, len(output.Buckets))
	for _, bucket := range output.Buckets {
		result = append(result, domain.ContainerMetadata{
			Name:         aws.ToString(bucket.Name),
			CreationDate: aws.ToTime(bucket.CreationDate),
		})
	}

	return result, nil
}

func (s *S3BlobStore) ContainerExists(ctx context.Context, container string) (bool, error) {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(container),
	})

	err = translateError("head bucket", container, "", err)
	if errors.As(err, &domain.ContainerNotFoundError{}) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	return true, nil
}

func (s *S3BlobStore) CreateContainer(ctx context.Context, container string) (bool, error) {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(container),
	}

	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}

	_, err := s.client.CreateBucket(ctx, input)

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "BucketAlreadyOwnedByYou" {
		return false, nil
	} else if err != nil {
		return false, translateError("create bucket", container, "", err)
	}

	return true, nil
}

func (s *S3BlobStore) DeleteContainer(ctx context.Context, container string) error {
	_, err := s.client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(container),
	})

	return translateError("delete bucket", container, "", err)
}

// List uses the version 1 ListObjects call: its Marker accepts the common
// prefix NextMarker returns for delimited pages and skips the keys under it.
func (s *S3BlobStore) List(ctx context.Context, container string, options domain.ListOptions) (domain.PageSet, error) {
	maxKeys := options.MaxKeys
	if maxKeys <= 0 || maxKeys > DefaultMaxKeys {
		maxKeys = DefaultMaxKeys
	}

	input := &s3.ListObjectsInput{
		Bucket:  aws.String(container),
		MaxKeys: aws.Int32(int32(maxKeys)),
	}
	if options.Prefix != "" {
		input.Prefix = aws.String(options.Prefix)
	}
	if options.Delimiter != "" {
		input.Delimiter = aws.String(options.Delimiter)
	}
	if options.Marker != "" {
		input.Marker = aws.String(options.Marker)
	}

	output, err := s.client.ListObjects(ctx, input)
	if err != nil {
		return domain.PageSet{}, translateError("list objects", container, "", err)
	}

	var page domain.PageSet
	for _, object := range output.Contents {
		page.Items = append(page.Items, domain.StorageMetadata{
			Name:         aws.ToString(object.Key),
			Size:         aws.ToInt64(object.Size),
			ETag:         trimETag(object.ETag),
			LastModified: aws.ToTime(object.LastModified),
		})
	}
	for _, prefix := range output.CommonPrefixes {
		page.Items = append(page.Items, domain.StorageMetadata{
			Name:     aws.ToString(prefix.Prefix),
			IsPrefix: true,
		})
	}

	sortItems(page.Items)

	page.IsTruncated = aws.ToBool(output.IsTruncated)
	if page.IsTruncated {
		page.NextMarker = aws.ToString(output.NextMarker)
		if page.NextMarker == "" && len(page.Items) > 0 {
			page.NextMarker = page.Items[len(page.Items)-1].Name
		}
	}

	return page, nil
}

func (s *S3BlobStore) BlobExists(ctx context.Context, container, name string) (bool, error) {
	_, err := s.BlobMetadata(ctx, container, name)
	if errors.As(err, &domain.KeyNotFoundError{}) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	return true, nil
}

func (s *S3BlobStore) PutBlob(ctx context.Context, container string, blob *domain.Blob) (string, error) {
	return s.PutBlobWithOptions(ctx, container, blob, domain.PutOptions{})
}

// PutBlobWithOptions issues a single PutObject. S3 handles objects up to
// 5GB that way; callers wanting parts use the multipart operations.
func (s *S3BlobStore) PutBlobWithOptions(ctx context.Context, container string, blob *domain.Blob, options domain.PutOptions) (string, error) {
	body, err := seekable(blob.Payload)
	if err != nil {
		return "", domain.NewStoreError("read payload for "+container+"/"+blob.Metadata.Name, err)
	}

	if options.Multipart {
		logger.Debugf("Multipart requested for %s/%s, storing with a single PutObject", container, blob.Metadata.Name)
	}

	input := &s3.PutObjectInput{
		Bucket:   aws.String(container),
		Key:      aws.String(blob.Metadata.Name),
		Body:     body,
		Metadata: blob.Metadata.UserMetadata,
	}
	if blob.Metadata.ContentType != "" {
		input.ContentType = aws.String(blob.Metadata.ContentType)
	}

	output, err := s.client.PutObject(ctx, input)
	if err != nil {
		return "", translateError("put object", container, blob.Metadata.Name, err)
	}

	return trimETag(output.ETag), nil
}

func (s *S3BlobStore) BlobMetadata(ctx context.Context, container, name string) (domain.BlobMetadata, error) {
	output, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(name),
	})
	if err != nil {
		return domain.BlobMetadata{}, translateError("head object", container, name, err)
	}

	return domain.BlobMetadata{
		Name:          name,
		ContentType:   aws.ToString(output.ContentType),
		ContentLength: aws.ToInt64(output.ContentLength),
		ETag:          trimETag(output.ETag),
		LastModified:  aws.ToTime(output.LastModified),
		UserMetadata:  output.Metadata,
	}, nil
}

// GetBlob returns a Blob whose Payload is the open response body. Callers
// close it when it implements io.Closer.
func (s *S3BlobStore) GetBlob(ctx context.Context, container, name string) (*domain.Blob, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(name),
	})
	if err != nil {
		return nil, translateError("get object", container, name, err)
	}

	return &domain.Blob{
		Metadata: domain.BlobMetadata{
			Name:          name,
			ContentType:   aws.ToString(output.ContentType),
			ContentLength: aws.ToInt64(output.ContentLength),
			ETag:          trimETag(output.ETag),
			LastModified:  aws.ToTime(output.LastModified),
			UserMetadata:  output.Metadata,
		},
		Payload: output.Body,
	}, nil
}

func (s *S3BlobStore) RemoveBlob(ctx context.Context, container, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(name),
	})

	return translateError("delete object", container, name, err)
}

func (s *S3BlobStore) CopyBlob(ctx context.Context, fromContainer, fromName, toContainer, toName string, options domain.CopyOptions) (string, error) {
	input := &s3.CopyObjectInput{
		Bucket:     aws.String(toContainer),
		Key:        aws.String(toName),
		CopySource: aws.String(url.PathEscape(fromContainer) + "/" + escapeKey(fromName)),
	}

	if options.ReplacesMetadata() {
		input.MetadataDirective = types.MetadataDirectiveReplace
		input.Metadata = options.UserMetadata
		if options.ContentType != "" {
			input.ContentType = aws.String(options.ContentType)
		}
	}

	if options.IfMatch != "" {
		input.CopySourceIfMatch = aws.String(options.IfMatch)
	}

	output, err := s.client.CopyObject(ctx, input)
	if err != nil {
		return "", s.translateCopyError(ctx, fromContainer, fromName, toContainer, err)
	}

	if output.CopyObjectResult == nil {
		return "", nil
	}

	return trimETag(output.CopyObjectResult.ETag), nil
}

// translateCopyError reports a missing bucket against whichever side of the
// copy is actually gone. The SDK does not expose the bucket named in the
// error body, so the destination is checked with HeadBucket.
func (s *S3BlobStore) translateCopyError(ctx context.Context, fromContainer, fromName, toContainer string, err error) error {
	err = translateError("copy object", fromContainer, fromName, err)
	if !errors.As(err, &domain.ContainerNotFoundError{}) || fromContainer == toContainer {
		return err
	}

	exists, headErr := s.ContainerExists(ctx, toContainer)
	if headErr == nil && !exists {
		return domain.ContainerNotFoundError{Container: toContainer}
	}

	return err
}

func (s *S3BlobStore) InitiateMultipartUpload(ctx context.Context, container string, metadata domain.BlobMetadata) (domain.MultipartUpload, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket:   aws.String(container),
		Key:      aws.String(metadata.Name),
		Metadata: metadata.UserMetadata,
	}
	if metadata.ContentType != "" {
		input.ContentType = aws.String(metadata.ContentType)
	}

	output, err := s.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return domain.MultipartUpload{}, translateError("create multipart upload", container, metadata.Name, err)
	}

	return domain.MultipartUpload{
		ContainerName: container,
		BlobName:      metadata.Name,
		ID:            aws.ToString(output.UploadId),
		Metadata:      metadata,
	}, nil
}

func (s *S3BlobStore) UploadMultipartPart(ctx context.Context, mpu domain.MultipartUpload, partNumber int, payload io.Reader) (domain.MultipartPart, error) {
	body, err := seekable(payload)
	if err != nil {
		return domain.MultipartPart{}, domain.NewStoreError("read part payload for upload "+mpu.ID, err)
	}

	size := body.Size()
	output, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(mpu.ContainerName),
		Key:        aws.String(mpu.BlobName),
		UploadId:   aws.String(mpu.ID),
		PartNumber: aws.Int32(int32(partNumber)),
		Body:       body,
	})
	if err != nil {
		return domain.MultipartPart{}, translateUploadError("upload part", mpu, err)
	}

	return domain.MultipartPart{
		PartNumber: partNumber,
		Size:       size,
		ETag:       trimETag(output.ETag),
	}, nil
}

func (s *S3BlobStore) ListMultipartUpload(ctx context.Context, mpu domain.MultipartUpload) ([]domain.MultipartPart, error) {
	var parts []domain.MultipartPart

	paginator := s3.NewListPartsPaginator(s.client, &s3.ListPartsInput{
		Bucket:   aws.String(mpu.ContainerName),
		Key:      aws.String(mpu.BlobName),
		UploadId: aws.String(mpu.ID),
	})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, translateUploadError("list parts", mpu, err)
		}
		for _, part := range output.Parts {
			parts = append(parts, domain.MultipartPart{
				PartNumber:   int(aws.ToInt32(part.PartNumber)),
				Size:         aws.ToInt64(part.Size),
				ETag:         trimETag(part.ETag),
				LastModified: aws.ToTime(part.LastModified),
			})
		}
	}

	return parts, nil
}

func (s *S3BlobStore) ListMultipartUploads(ctx context.Context, container string) ([]domain.MultipartUpload, error) {
	var uploads []domain.MultipartUpload

	input := &s3.ListMultipartUploadsInput{
		Bucket: aws.String(container),
	}
	for {
		output, err := s.client.ListMultipartUploads(ctx, input)
		if err != nil {
			return nil, translateError("list multipart uploads", container, "", err)
		}

		for _, upload := range output.Uploads {
			uploads = append(uploads, domain.MultipartUpload{
				ContainerName: container,
				BlobName:      aws.ToString(upload.Key),
				ID:            aws.ToString(upload.UploadId),
				Metadata:      domain.BlobMetadata{Name: aws.ToString(upload.Key)},
			})
		}

		if !aws.ToBool(output.IsTruncated) {
			break
		}

		input.KeyMarker = output.NextKeyMarker
		input.UploadIdMarker = output.NextUploadIdMarker
	}

	return uploads, nil
}

func (s *S3BlobStore) AbortMultipartUpload(ctx context.Context, mpu domain.MultipartUpload) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(mpu.ContainerName),
		Key:      aws.String(mpu.BlobName),
		UploadId: aws.String(mpu.ID),
	})

	return translateUploadError("abort multipart upload", mpu, err)
}

func (s *S3BlobStore) CompleteMultipartUpload(ctx context.Context, mpu domain.MultipartUpload, parts []domain.MultipartPart) (string, error) {
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, part := range parts {
		completed = append(completed, types.CompletedPart{
			ETag:       aws.String(part.ETag),
			PartNumber: aws.Int32(int32(part.PartNumber)),
		})
	}

	output, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(mpu.ContainerName),
		Key:      aws.String(mpu.BlobName),
		UploadId: aws.String(mpu.ID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return "", translateUploadError("complete multipart upload", mpu, err)
	}

	return trimETag(output.ETag), nil
}

func translateUploadError(op string, mpu domain.MultipartUpload, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchUpload":
			return domain.UploadNotFoundError{Container: mpu.ContainerName, Key: mpu.BlobName, UploadID: mpu.ID}
		case "InvalidPart", "InvalidPartOrder", "EntityTooSmall":
			return domain.InvalidPartError{UploadID: mpu.ID, Reason: apiErr.ErrorMessage()}
		}
	}

	return translateError(op, mpu.ContainerName, mpu.BlobName, err)
}

// translateError maps S3 error codes onto the domain errors shared with
// the other stores. nil stays nil.
func translateError(op, container, key string, err error) error {
	if err == nil {
		return nil
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return domain.KeyNotFoundError{Container: container, Key: key}
	}

	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return domain.ContainerNotFoundError{Container: container}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey":
			return domain.KeyNotFoundError{Container: container, Key: key}
		case "NotFound":
			if key == "" {
				return domain.ContainerNotFoundError{Container: container}
			}
			return domain.KeyNotFoundError{Container: container, Key: key}
		case "NoSuchBucket":
			return domain.ContainerNotFoundError{Container: container}
		case "BucketNotEmpty":
			return domain.ContainerNotEmptyError{Container: container}
		case "PreconditionFailed":
			return domain.PreconditionFailedError{Container: container, Key: key}
		}
	}

	return domain.NewStoreError(op, err)
}

func sortItems(items []domain.StorageMetadata) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
}

func trimETag(etag *string) string {
	return strings.Trim(aws.ToString(etag), `"`)
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}

	return strings.Join(segments, "/")
}

// seekable buffers r so the SDK can sign and retry the request body.
func seekable(r io.Reader) (*bytes.Reader, error) {
	if r == nil {
		return bytes.NewReader(nil), nil
	}

	if b, ok := r.(*bytes.Reader); ok {
		return b, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(data), nil
}
