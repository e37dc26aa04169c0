package blobstore_test

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"github.com/ATenderholt/rainbow-webhook/internal/blobstore"
	"github.com/ATenderholt/rainbow-webhook/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"strings"
	"testing"
)

func newStore(t *testing.T, containers ...string) *blobstore.MemoryBlobStore {
	t.Helper()

	store := blobstore.NewMemoryBlobStore()
	for _, c := range containers {
		created, err := store.CreateContainer(context.Background(), c)
		require.NoError(t, err)
		require.True(t, created)
	}

	return store
}

func put(t *testing.T, store blobstore.BlobStore, container, name, body string) string {
	t.Helper()

	etag, err := store.PutBlob(context.Background(), container, domain.NewBlob(name, strings.NewReader(body)))
	require.NoError(t, err)

	return etag
}

func read(t *testing.T, store blobstore.BlobStore, container, name string) string {
	t.Helper()

	blob, err := store.GetBlob(context.Background(), container, name)
	require.NoError(t, err)

	data, err := io.ReadAll(blob.Payload)
	require.NoError(t, err)

	return string(data)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestMemoryPutAndGet(t *testing.T) {
	store := newStore(t, "b1")

	etag := put(t, store, "b1", "k1", "hello")
	assert.Equal(t, md5Hex("hello"), etag)
	assert.Equal(t, "hello", read(t, store, "b1", "k1"))

	metadata, err := store.BlobMetadata(context.Background(), "b1", "k1")
	require.NoError(t, err)
	assert.Equal(t, "k1", metadata.Name)
	assert.Equal(t, int64(5), metadata.ContentLength)
	assert.Equal(t, etag, metadata.ETag)
	assert.False(t, metadata.LastModified.IsZero())

	exists, err := store.BlobExists(context.Background(), "b1", "k1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryPutMissingContainer(t *testing.T) {
	store := newStore(t)

	_, err := store.PutBlob(context.Background(), "missing", domain.NewBlob("k1", strings.NewReader("x")))

	var notFound domain.ContainerNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Container)
}

func TestMemoryGetMissingKey(t *testing.T) {
	store := newStore(t, "b1")

	_, err := store.GetBlob(context.Background(), "b1", "nope")

	assert.ErrorAs(t, err, &domain.KeyNotFoundError{})
}

func TestMemoryCreateContainerTwice(t *testing.T) {
	store := newStore(t, "b1")

	created, err := store.CreateContainer(context.Background(), "b1")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestMemoryDeleteContainer(t *testing.T) {
	store := newStore(t, "b1")
	put(t, store, "b1", "k1", "x")

	err := store.DeleteContainer(context.Background(), "b1")
	assert.ErrorAs(t, err, &domain.ContainerNotEmptyError{})

	require.NoError(t, store.RemoveBlob(context.Background(), "b1", "k1"))
	require.NoError(t, store.DeleteContainer(context.Background(), "b1"))

	exists, err := store.ContainerExists(context.Background(), "b1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryListContainers(t *testing.T) {
	store := newStore(t, "zeta", "alpha")

	containers, err := store.ListContainers(context.Background())
	require.NoError(t, err)

	require.Len(t, containers, 2)
	assert.Equal(t, "alpha", containers[0].Name)
	assert.Equal(t, "zeta", containers[1].Name)
}

func TestMemoryListPrefixAndDelimiter(t *testing.T) {
	store := newStore(t, "b1")
	for _, name := range []string{"a.txt", "logs/1.log", "logs/2.log", "logs/old/3.log", "z.txt"} {
		put(t, store, "b1", name, name)
	}

	page, err := store.List(context.Background(), "b1", domain.ListOptions{Delimiter: "/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "logs/", "z.txt"}, names(page))
	assert.True(t, page.Items[1].IsPrefix)

	page, err = store.List(context.Background(), "b1", domain.ListOptions{Prefix: "logs/", Delimiter: "/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"logs/1.log", "logs/2.log", "logs/old/"}, names(page))
}

func TestMemoryListPaging(t *testing.T) {
	store := newStore(t, "b1")
	for i := 0; i < 5; i++ {
		put(t, store, "b1", fmt.Sprintf("k%d", i), "x")
	}

	page, err := store.List(context.Background(), "b1", domain.ListOptions{MaxKeys: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"k0", "k1"}, names(page))
	assert.True(t, page.IsTruncated)
	assert.Equal(t, "k1", page.NextMarker)

	page, err = store.List(context.Background(), "b1", domain.ListOptions{MaxKeys: 10, Marker: page.NextMarker})
	require.NoError(t, err)
	assert.Equal(t, []string{"k2", "k3", "k4"}, names(page))
	assert.False(t, page.IsTruncated)
}

func TestMemoryCopyBlob(t *testing.T) {
	store := newStore(t, "src", "dst")
	blob := domain.NewBlob("k1", strings.NewReader("payload"))
	blob.Metadata.ContentType = "text/plain"
	blob.Metadata.UserMetadata = map[string]string{"owner": "me"}
	_, err := store.PutBlob(context.Background(), "src", blob)
	require.NoError(t, err)

	etag, err := store.CopyBlob(context.Background(), "src", "k1", "dst", "k2", domain.CopyOptions{})
	require.NoError(t, err)
	assert.Equal(t, md5Hex("payload"), etag)
	assert.Equal(t, "payload", read(t, store, "dst", "k2"))

	metadata, err := store.BlobMetadata(context.Background(), "dst", "k2")
	require.NoError(t, err)
	assert.Equal(t, "k2", metadata.Name)
	assert.Equal(t, "text/plain", metadata.ContentType)
	assert.Equal(t, map[string]string{"owner": "me"}, metadata.UserMetadata)

	_, err = store.CopyBlob(context.Background(), "src", "k1", "dst", "k3", domain.CopyOptions{ContentType: "application/json"})
	require.NoError(t, err)

	metadata, err = store.BlobMetadata(context.Background(), "dst", "k3")
	require.NoError(t, err)
	assert.Equal(t, "application/json", metadata.ContentType)
	assert.Nil(t, metadata.UserMetadata)
}

func TestMemoryCopyBlobIfMatch(t *testing.T) {
	store := newStore(t, "b1")
	etag := put(t, store, "b1", "k1", "payload")

	_, err := store.CopyBlob(context.Background(), "b1", "k1", "b1", "k2", domain.CopyOptions{IfMatch: "nope"})
	assert.ErrorAs(t, err, &domain.PreconditionFailedError{})

	_, err = store.CopyBlob(context.Background(), "b1", "k1", "b1", "k2", domain.CopyOptions{IfMatch: `"` + etag + `"`})
	assert.NoError(t, err)
}

func TestMemoryMultipartUpload(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "b1")

	mpu, err := store.InitiateMultipartUpload(ctx, "b1", domain.BlobMetadata{Name: "big", ContentType: "application/octet-stream"})
	require.NoError(t, err)
	assert.NotEmpty(t, mpu.ID)

	p2, err := store.UploadMultipartPart(ctx, mpu, 2, strings.NewReader("world"))
	require.NoError(t, err)
	p1, err := store.UploadMultipartPart(ctx, mpu, 1, strings.NewReader("hello "))
	require.NoError(t, err)

	parts, err := store.ListMultipartUpload(ctx, mpu)
	require.NoError(t, err)
	assert.Equal(t, []domain.MultipartPart{p1, p2}, parts)

	uploads, err := store.ListMultipartUploads(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, uploads, 1)

	etag, err := store.CompleteMultipartUpload(ctx, mpu, []domain.MultipartPart{p1, p2})
	require.NoError(t, err)

	s1 := md5.Sum([]byte("hello "))
	s2 := md5.Sum([]byte("world"))
	combined := md5.Sum(append(s1[:], s2[:]...))
	assert.Equal(t, hex.EncodeToString(combined[:])+"-2", etag)
	assert.Equal(t, "hello world", read(t, store, "b1", "big"))

	metadata, err := store.BlobMetadata(ctx, "b1", "big")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", metadata.ContentType)

	uploads, err = store.ListMultipartUploads(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, uploads)
}

func TestMemoryCompleteMultipartUploadErrors(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "b1")

	mpu, err := store.InitiateMultipartUpload(ctx, "b1", domain.BlobMetadata{Name: "big"})
	require.NoError(t, err)
	p1, err := store.UploadMultipartPart(ctx, mpu, 1, strings.NewReader("a"))
	require.NoError(t, err)
	p2, err := store.UploadMultipartPart(ctx, mpu, 2, strings.NewReader("b"))
	require.NoError(t, err)

	_, err = store.CompleteMultipartUpload(ctx, mpu, nil)
	assert.ErrorAs(t, err, &domain.InvalidPartError{})

	_, err = store.CompleteMultipartUpload(ctx, mpu, []domain.MultipartPart{p2, p1})
	assert.ErrorAs(t, err, &domain.InvalidPartError{})

	_, err = store.CompleteMultipartUpload(ctx, mpu, []domain.MultipartPart{p1, {PartNumber: 3}})
	assert.ErrorAs(t, err, &domain.InvalidPartError{})

	_, err = store.CompleteMultipartUpload(ctx, mpu, []domain.MultipartPart{{PartNumber: 1, ETag: "bad"}})
	assert.ErrorAs(t, err, &domain.InvalidPartError{})

	_, err = store.UploadMultipartPart(ctx, mpu, 0, strings.NewReader("x"))
	assert.ErrorAs(t, err, &domain.InvalidPartError{})

	require.NoError(t, store.AbortMultipartUpload(ctx, mpu))

	_, err = store.CompleteMultipartUpload(ctx, mpu, []domain.MultipartPart{p1})
	assert.ErrorAs(t, err, &domain.UploadNotFoundError{})
}

func names(page domain.PageSet) []string {
	result := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		result = append(result, item.Name)
	}

	return result
}
