package http

import (
	"encoding/xml"
	"time"
)

const s3Namespace = "http://s3.amazonaws.com/doc/2006-03-01/"

const timeFormat = "2006-01-02T15:04:05.000Z"

type Bucket struct {
	Name         string
	CreationDate string
}

type ListAllMyBucketsResult struct {
	XMLName xml.Name `xml:"ListAllMyBucketsResult"`
	Xmlns   string   `xml:"xmlns,attr"`
	Buckets []Bucket `xml:"Buckets>Bucket"`
}

type Contents struct {
	Key          string
	LastModified string
	ETag         string
	Size         int64
	StorageClass string
}

type CommonPrefix struct {
	Prefix string
}

type ListBucketResult struct {
	XMLName        xml.Name `xml:"ListBucketResult"`
	Xmlns          string   `xml:"xmlns,attr"`
	Name           string
	Prefix         string
	Marker         string
	NextMarker     string `xml:",omitempty"`
	MaxKeys        int
	Delimiter      string `xml:",omitempty"`
	IsTruncated    bool
	Contents       []Contents
	CommonPrefixes []CommonPrefix
}

type CopyObjectResult struct {
	XMLName      xml.Name `xml:"CopyObjectResult"`
	Xmlns        string   `xml:"xmlns,attr"`
	LastModified string
	ETag         string
}

type InitiateMultipartUploadResult struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	Xmlns    string   `xml:"xmlns,attr"`
	Bucket   string
	Key      string
	UploadId string
}

type CompletedPart struct {
	PartNumber int
	ETag       string
}

type CompleteMultipartUpload struct {
	XMLName xml.Name        `xml:"CompleteMultipartUpload"`
	Parts   []CompletedPart `xml:"Part"`
}

type CompleteMultipartUploadResult struct {
	XMLName  xml.Name `xml:"CompleteMultipartUploadResult"`
	Xmlns    string   `xml:"xmlns,attr"`
	Location string
	Bucket   string
	Key      string
	ETag     string
}

type Part struct {
	PartNumber   int
	LastModified string
	ETag         string
	Size         int64
}

type ListPartsResult struct {
	XMLName  xml.Name `xml:"ListPartsResult"`
	Xmlns    string   `xml:"xmlns,attr"`
	Bucket   string
	Key      string
	UploadId string
	Parts    []Part `xml:"Part"`
}

type Upload struct {
	Key      string
	UploadId string
}

type ListMultipartUploadsResult struct {
	XMLName xml.Name `xml:"ListMultipartUploadsResult"`
	Xmlns   string   `xml:"xmlns,attr"`
	Bucket  string
	Uploads []Upload `xml:"Upload"`
}

type Error struct {
	XMLName  xml.Name `xml:"Error"`
	Code     string
	Message  string
	Resource string
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func quote(etag string) string {
	return `"` + etag + `"`
}
