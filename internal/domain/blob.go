package domain

import (
	"io"
	"time"
)

type BlobMetadata struct {
	Name          string
	ContentType   string
	ContentLength int64
	ETag          string
	LastModified  time.Time
	UserMetadata  map[string]string
}

type Blob struct {
	Metadata BlobMetadata
	Payload  io.Reader
}

// NewBlob returns a Blob named name whose payload is read from payload.
func NewBlob(name string, payload io.Reader) *Blob {
	return &Blob{
		Metadata: BlobMetadata{Name: name},
		Payload:  payload,
	}
}

type PutOptions struct {
	Multipart bool
}

// CopyOptions replaces the destination metadata when ContentType or
// UserMetadata is set. Otherwise the source metadata is copied.
type CopyOptions struct {
	ContentType  string
	UserMetadata map[string]string
	IfMatch      string
}

func (o CopyOptions) ReplacesMetadata() bool {
	return o.ContentType != "" || o.UserMetadata != nil
}

type ListOptions struct {
	Prefix    string
	Delimiter string
	Marker    string
	MaxKeys   int
}

type StorageMetadata struct {
	Name         string
	Size         int64
	ETag         string
	LastModified time.Time
	IsPrefix     bool
}

type PageSet struct {
	Items       []StorageMetadata
	NextMarker  string
	IsTruncated bool
}

type ContainerMetadata struct {
	Name         string
	CreationDate time.Time
}

type MultipartUpload struct {
	ContainerName string
	BlobName      string
	ID            string
	Metadata      BlobMetadata
}

type MultipartPart struct {
	PartNumber   int
	Size         int64
	ETag         string
	LastModified time.Time
}
