package http

import (
	"encoding/xml"
	"github.com/ATenderholt/rainbow-webhook/internal/blobstore"
	"github.com/ATenderholt/rainbow-webhook/internal/domain"
	"github.com/go-chi/chi/v5"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	metadataPrefix     = "X-Amz-Meta-"
	copySourceHeader   = "X-Amz-Copy-Source"
	copyIfMatchHeader  = "X-Amz-Copy-Source-If-Match"
	metadataDirective  = "X-Amz-Metadata-Directive"
	directiveReplace   = "REPLACE"
	defaultContentType = "binary/octet-stream"
)

type S3Handler struct {
	store blobstore.BlobStore
}

func NewS3Handler(store blobstore.BlobStore) S3Handler {
	return S3Handler{
		store: store,
	}
}

func bucketName(request *http.Request) string {
	return chi.URLParam(request, "bucket")
}

func objectKey(request *http.Request) string {
	key := chi.URLParam(request, "*")
	if request.URL.RawPath == "" {
		return key
	}

	unescaped, err := url.PathUnescape(key)
	if err != nil {
		return key
	}

	return unescaped
}

func userMetadata(header http.Header) map[string]string {
	var result map[string]string
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		if !strings.HasPrefix(canonical, metadataPrefix) || len(values) == 0 {
			continue
		}

		if result == nil {
			result = make(map[string]string)
		}
		result[strings.ToLower(canonical[len(metadataPrefix):])] = values[0]
	}

	return result
}

func writeMetadataHeaders(w http.ResponseWriter, metadata domain.BlobMetadata) {
	contentType := metadata.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(metadata.ContentLength, 10))
	w.Header().Set("ETag", quote(metadata.ETag))
	if !metadata.LastModified.IsZero() {
		w.Header().Set("Last-Modified", metadata.LastModified.UTC().Format(http.TimeFormat))
	}

	for k, v := range metadata.UserMetadata {
		w.Header().Set(metadataPrefix+k, v)
	}
}

func writeXML(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)

	_, _ = w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(w).Encode(body); err != nil {
		logger.Errorf("Unable to encode %T: %v", body, err)
	}
}

func (h S3Handler) ListBuckets(w http.ResponseWriter, request *http.Request) {
	containers, err := h.store.ListContainers(request.Context())
	if err != nil {
		writeError(w, request, err)
		return
	}

	result := ListAllMyBucketsResult{Xmlns: s3Namespace}
	for _, c := range containers {
		result.Buckets = append(result.Buckets, Bucket{Name: c.Name, CreationDate: formatTime(c.CreationDate)})
	}

	writeXML(w, http.StatusOK, result)
}

func (h S3Handler) HeadBucket(w http.ResponseWriter, request *http.Request) {
	bucket := bucketName(request)

	exists, err := h.store.ContainerExists(request.Context(), bucket)
	if err != nil {
		writeError(w, request, err)
		return
	}

	if !exists {
		writeError(w, request, domain.ContainerNotFoundError{Container: bucket})
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h S3Handler) CreateBucket(w http.ResponseWriter, request *http.Request) {
	bucket := bucketName(request)

	created, err := h.store.CreateContainer(request.Context(), bucket)
	if err != nil {
		writeError(w, request, err)
		return
	}

	if created {
		logger.Infof("Created bucket %s", bucket)
	}

	w.Header().Set("Location", "/"+bucket)
	w.WriteHeader(http.StatusOK)
}

func (h S3Handler) DeleteBucket(w http.ResponseWriter, request *http.Request) {
	bucket := bucketName(request)

	if err := h.store.DeleteContainer(request.Context(), bucket); err != nil {
		writeError(w, request, err)
		return
	}

	logger.Infof("Deleted bucket %s", bucket)
	w.WriteHeader(http.StatusNoContent)
}

func (h S3Handler) GetBucket(w http.ResponseWriter, request *http.Request) {
	if hasQuery(request, "uploads") {
		h.listUploads(w, request)
		return
	}

	bucket := bucketName(request)
	query := request.URL.Query()

	options := domain.ListOptions{
		Prefix:    query.Get("prefix"),
		Delimiter: query.Get("delimiter"),
		Marker:    query.Get("marker"),
		MaxKeys:   blobstore.DefaultMaxKeys,
	}

	if s := query.Get("max-keys"); s != "" {
		maxKeys, err := strconv.Atoi(s)
		if err != nil || maxKeys < 0 {
			writeErrorCode(w, request, http.StatusBadRequest, "InvalidArgument", "max-keys must be a non-negative integer")
			return
		}
		if maxKeys > blobstore.DefaultMaxKeys {
			maxKeys = blobstore.DefaultMaxKeys
		}
		options.MaxKeys = maxKeys
	}

	// max-keys=0 returns no keys; one key is still read to report truncation.
	storeOptions := options
	if options.MaxKeys == 0 {
		storeOptions.MaxKeys = 1
	}

	page, err := h.store.List(request.Context(), bucket, storeOptions)
	if err != nil {
		writeError(w, request, err)
		return
	}

	if options.MaxKeys == 0 {
		page = domain.PageSet{IsTruncated: len(page.Items) > 0}
	}

	result := ListBucketResult{
		Xmlns:       s3Namespace,
		Name:        bucket,
		Prefix:      options.Prefix,
		Marker:      options.Marker,
		NextMarker:  page.NextMarker,
		MaxKeys:     options.MaxKeys,
		Delimiter:   options.Delimiter,
		IsTruncated: page.IsTruncated,
	}

	for _, item := range page.Items {
		if item.IsPrefix {
			result.CommonPrefixes = append(result.CommonPrefixes, CommonPrefix{Prefix: item.Name})
			continue
		}

		result.Contents = append(result.Contents, Contents{
			Key:          item.Name,
			LastModified: formatTime(item.LastModified),
			ETag:         quote(item.ETag),
			Size:         item.Size,
			StorageClass: "STANDARD",
		})
	}

	writeXML(w, http.StatusOK, result)
}

func (h S3Handler) listUploads(w http.ResponseWriter, request *http.Request) {
	bucket := bucketName(request)

	uploads, err := h.store.ListMultipartUploads(request.Context(), bucket)
	if err != nil {
		writeError(w, request, err)
		return
	}

	result := ListMultipartUploadsResult{Xmlns: s3Namespace, Bucket: bucket}
	for _, u := range uploads {
		result.Uploads = append(result.Uploads, Upload{Key: u.BlobName, UploadId: u.ID})
	}

	writeXML(w, http.StatusOK, result)
}

func (h S3Handler) HeadObject(w http.ResponseWriter, request *http.Request) {
	metadata, err := h.store.BlobMetadata(request.Context(), bucketName(request), objectKey(request))
	if err != nil {
		writeError(w, request, err)
		return
	}

	writeMetadataHeaders(w, metadata)
	w.WriteHeader(http.StatusOK)
}

func (h S3Handler) GetObject(w http.ResponseWriter, request *http.Request) {
	if hasQuery(request, "uploadId") {
		h.listParts(w, request)
		return
	}

	blob, err := h.store.GetBlob(request.Context(), bucketName(request), objectKey(request))
	if err != nil {
		writeError(w, request, err)
		return
	}

	if closer, ok := blob.Payload.(io.Closer); ok {
		defer closer.Close()
	}

	writeMetadataHeaders(w, blob.Metadata)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, blob.Payload); err != nil {
		logger.Warnf("Unable to write %s/%s to client: %v", bucketName(request), objectKey(request), err)
	}
}

func (h S3Handler) PutObject(w http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()

	switch {
	case query.Get("uploadId") != "" && query.Get("partNumber") != "":
		h.uploadPart(w, request)
	case request.Header.Get(copySourceHeader) != "":
		h.copyObject(w, request)
	default:
		h.putObject(w, request)
	}
}

func (h S3Handler) putObject(w http.ResponseWriter, request *http.Request) {
	bucket := bucketName(request)
	blob := domain.NewBlob(objectKey(request), request.Body)
	blob.Metadata.ContentType = request.Header.Get("Content-Type")
	blob.Metadata.UserMetadata = userMetadata(request.Header)

	etag, err := h.store.PutBlob(request.Context(), bucket, blob)
	if err != nil {
		writeError(w, request, err)
		return
	}

	w.Header().Set("ETag", quote(etag))
	w.WriteHeader(http.StatusOK)
}

func parseCopySource(source string) (string, string, bool) {
	unescaped, err := url.PathUnescape(source)
	if err != nil {
		return "", "", false
	}

	unescaped = strings.TrimPrefix(unescaped, "/")
	if i := strings.Index(unescaped, "?"); i >= 0 {
		unescaped = unescaped[:i]
	}

	pieces := strings.SplitN(unescaped, "/", 2)
	if len(pieces) != 2 || pieces[0] == "" || pieces[1] == "" {
		return "", "", false
	}

	return pieces[0], pieces[1], true
}

func (h S3Handler) copyObject(w http.ResponseWriter, request *http.Request) {
	fromBucket, fromKey, ok := parseCopySource(request.Header.Get(copySourceHeader))
	if !ok {
		writeErrorCode(w, request, http.StatusBadRequest, "InvalidArgument", "x-amz-copy-source must be bucket/key")
		return
	}

	var options domain.CopyOptions
	if strings.EqualFold(request.Header.Get(metadataDirective), directiveReplace) {
		options.ContentType = request.Header.Get("Content-Type")
		options.UserMetadata = userMetadata(request.Header)
		if options.UserMetadata == nil {
			options.UserMetadata = map[string]string{}
		}
	}
	options.IfMatch = request.Header.Get(copyIfMatchHeader)

	bucket := bucketName(request)
	key := objectKey(request)

	etag, err := h.store.CopyBlob(request.Context(), fromBucket, fromKey, bucket, key, options)
	if err != nil {
		writeError(w, request, err)
		return
	}

	result := CopyObjectResult{Xmlns: s3Namespace, ETag: quote(etag)}
	if metadata, err := h.store.BlobMetadata(request.Context(), bucket, key); err == nil {
		result.LastModified = formatTime(metadata.LastModified)
	}

	writeXML(w, http.StatusOK, result)
}

func multipartUpload(request *http.Request) domain.MultipartUpload {
	key := objectKey(request)
	return domain.MultipartUpload{
		ContainerName: bucketName(request),
		BlobName:      key,
		ID:            request.URL.Query().Get("uploadId"),
		Metadata:      domain.BlobMetadata{Name: key},
	}
}

func (h S3Handler) uploadPart(w http.ResponseWriter, request *http.Request) {
	partNumber, err := strconv.Atoi(request.URL.Query().Get("partNumber"))
	if err != nil {
		writeErrorCode(w, request, http.StatusBadRequest, "InvalidArgument", "partNumber must be an integer")
		return
	}

	part, err := h.store.UploadMultipartPart(request.Context(), multipartUpload(request), partNumber, request.Body)
	if err != nil {
		writeError(w, request, err)
		return
	}

	w.Header().Set("ETag", quote(part.ETag))
	w.WriteHeader(http.StatusOK)
}

func (h S3Handler) listParts(w http.ResponseWriter, request *http.Request) {
	mpu := multipartUpload(request)

	parts, err := h.store.ListMultipartUpload(request.Context(), mpu)
	if err != nil {
		writeError(w, request, err)
		return
	}

	result := ListPartsResult{Xmlns: s3Namespace, Bucket: mpu.ContainerName, Key: mpu.BlobName, UploadId: mpu.ID}
	for _, p := range parts {
		result.Parts = append(result.Parts, Part{
			PartNumber:   p.PartNumber,
			LastModified: formatTime(p.LastModified),
			ETag:         quote(p.ETag),
			Size:         p.Size,
		})
	}

	writeXML(w, http.StatusOK, result)
}

func (h S3Handler) PostObject(w http.ResponseWriter, request *http.Request) {
	switch {
	case hasQuery(request, "uploads"):
		h.initiateUpload(w, request)
	case request.URL.Query().Get("uploadId") != "":
		h.completeUpload(w, request)
	default:
		writeErrorCode(w, request, http.StatusNotImplemented, "NotImplemented", "POST is only supported for multipart uploads")
	}
}

func (h S3Handler) initiateUpload(w http.ResponseWriter, request *http.Request) {
	bucket := bucketName(request)
	metadata := domain.BlobMetadata{
		Name:         objectKey(request),
		ContentType:  request.Header.Get("Content-Type"),
		UserMetadata: userMetadata(request.Header),
	}

	mpu, err := h.store.InitiateMultipartUpload(request.Context(), bucket, metadata)
	if err != nil {
		writeError(w, request, err)
		return
	}

	writeXML(w, http.StatusOK, InitiateMultipartUploadResult{
		Xmlns:    s3Namespace,
		Bucket:   mpu.ContainerName,
		Key:      mpu.BlobName,
		UploadId: mpu.ID,
	})
}

func (h S3Handler) completeUpload(w http.ResponseWriter, request *http.Request) {
	var body CompleteMultipartUpload
	if err := xml.NewDecoder(request.Body).Decode(&body); err != nil {
		writeErrorCode(w, request, http.StatusBadRequest, "MalformedXML", err.Error())
		return
	}

	parts := make([]domain.MultipartPart, 0, len(body.Parts))
	for _, p := range body.Parts {
		parts = append(parts, domain.MultipartPart{
			PartNumber: p.PartNumber,
			ETag:       strings.Trim(p.ETag, `"`),
		})
	}

	mpu := multipartUpload(request)

	etag, err := h.store.CompleteMultipartUpload(request.Context(), mpu, parts)
	if err != nil {
		writeError(w, request, err)
		return
	}

	writeXML(w, http.StatusOK, CompleteMultipartUploadResult{
		Xmlns:    s3Namespace,
		Location: "/" + mpu.ContainerName + "/" + mpu.BlobName,
		Bucket:   mpu.ContainerName,
		Key:      mpu.BlobName,
		ETag:     quote(etag),
	})
}

func (h S3Handler) DeleteObject(w http.ResponseWriter, request *http.Request) {
	var err error
	if request.URL.Query().Get("uploadId") != "" {
		err = h.store.AbortMultipartUpload(request.Context(), multipartUpload(request))
	} else {
		err = h.store.RemoveBlob(request.Context(), bucketName(request), objectKey(request))
	}

	if err != nil {
		writeError(w, request, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
