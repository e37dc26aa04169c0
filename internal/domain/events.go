package domain

import "net/url"

const (
	ObjectCreatedEvent = "s3:ObjectCreated"

	ObjectCreatedPut                     = ObjectCreatedEvent + ":Put"
	ObjectCreatedCopy                    = ObjectCreatedEvent + ":Copy"
	ObjectCreatedCompleteMultipartUpload = ObjectCreatedEvent + ":CompleteMultipartUpload"
)

type NotificationEvent struct {
	Bucket string
	Key    string // S3 Object key
	Event  string // S3 event (i.e. s3:ObjectCreated:Put", "s3:ObjectCreated:Copy", etc.)
}

// Form returns the webhook body fields. Event is not part of the wire form.
func (e NotificationEvent) Form() url.Values {
	values := url.Values{}
	values.Set("bucket", e.Bucket)
	values.Set("key", e.Key)
	return values
}
