package http_test

import (
	"encoding/xml"
	"fmt"
	"github.com/ATenderholt/rainbow-webhook/internal/blobstore"
	"github.com/ATenderholt/rainbow-webhook/internal/domain"
	rainbowhttp "github.com/ATenderholt/rainbow-webhook/internal/http"
	"github.com/ATenderholt/rainbow-webhook/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type hook struct {
	sync.Mutex
	bodies []string
}

func (h *hook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	h.Lock()
	h.bodies = append(h.bodies, string(body))
	h.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (h *hook) Bodies() []string {
	h.Lock()
	defer h.Unlock()

	return append([]string(nil), h.bodies...)
}

func newServer(t *testing.T) (*httptest.Server, *hook) {
	t.Helper()

	h := &hook{}
	hookServer := httptest.NewServer(h)
	t.Cleanup(hookServer.Close)

	notifier, err := webhook.NewHTTPNotifier(hookServer.URL, hookServer.Client(), time.Second, domain.Filter{})
	require.NoError(t, err)

	store, err := webhook.NewBlobStore(blobstore.NewMemoryBlobStore(), notifier, nil)
	require.NoError(t, err)

	server := httptest.NewServer(rainbowhttp.NewChiMux(rainbowhttp.NewS3Handler(store)))
	t.Cleanup(server.Close)

	return server, h
}

func do(t *testing.T, method, url string, body io.Reader, headers map[string]string) (*http.Response, string) {
	t.Helper()

	request, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	for k, v := range headers {
		request.Header.Set(k, v)
	}

	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	require.NoError(t, err)

	return response, string(data)
}

func TestPutAndGetObject(t *testing.T) {
	server, h := newServer(t)

	response, _ := do(t, http.MethodPut, server.URL+"/b1", nil, nil)
	require.Equal(t, http.StatusOK, response.StatusCode)

	response, _ = do(t, http.MethodPut, server.URL+"/b1/dir/k1", strings.NewReader("hello"), map[string]string{
		"Content-Type":      "text/plain",
		"X-Amz-Meta-Author": "someone",
	})
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, `"5d41402abc4b2a76b9719d911017c592"`, response.Header.Get("ETag"))

	response, body := do(t, http.MethodGet, server.URL+"/b1/dir/k1", nil, nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "hello", body)
	assert.Equal(t, "text/plain", response.Header.Get("Content-Type"))
	assert.Equal(t, "someone", response.Header.Get("X-Amz-Meta-Author"))

	assert.Equal(t, []string{"bucket=b1&key=dir%2Fk1"}, h.Bodies())
}

func TestCopyObjectNotifiesDestination(t *testing.T) {
	server, h := newServer(t)

	do(t, http.MethodPut, server.URL+"/src", nil, nil)
	do(t, http.MethodPut, server.URL+"/dst", nil, nil)
	do(t, http.MethodPut, server.URL+"/src/k1", strings.NewReader("hello"), nil)

	response, body := do(t, http.MethodPut, server.URL+"/dst/k2", nil, map[string]string{
		"X-Amz-Copy-Source": "/src/k1",
	})
	require.Equal(t, http.StatusOK, response.StatusCode)

	var result rainbowhttp.CopyObjectResult
	require.NoError(t, xml.Unmarshal([]byte(body), &result))
	assert.Equal(t, `"5d41402abc4b2a76b9719d911017c592"`, result.ETag)

	assert.Equal(t, []string{"bucket=src&key=k1", "bucket=dst&key=k2"}, h.Bodies())
}

func TestMultipartUploadNotifiesOnCompletion(t *testing.T) {
	server, h := newServer(t)
	do(t, http.MethodPut, server.URL+"/b1", nil, nil)

	response, body := do(t, http.MethodPost, server.URL+"/b1/big?uploads", nil, nil)
	require.Equal(t, http.StatusOK, response.StatusCode)

	var initiated rainbowhttp.InitiateMultipartUploadResult
	require.NoError(t, xml.Unmarshal([]byte(body), &initiated))
	require.NotEmpty(t, initiated.UploadId)

	var complete rainbowhttp.CompleteMultipartUpload
	for i, data := range []string{"hello ", "world"} {
		url := fmt.Sprintf("%s/b1/big?partNumber=%d&uploadId=%s", server.URL, i+1, initiated.UploadId)
		response, _ := do(t, http.MethodPut, url, strings.NewReader(data), nil)
		require.Equal(t, http.StatusOK, response.StatusCode)

		complete.Parts = append(complete.Parts, rainbowhttp.CompletedPart{PartNumber: i + 1, ETag: response.Header.Get("ETag")})
	}
	assert.Empty(t, h.Bodies())

	payload, err := xml.Marshal(complete)
	require.NoError(t, err)

	response, _ = do(t, http.MethodPost, server.URL+"/b1/big?uploadId="+initiated.UploadId, strings.NewReader(string(payload)), nil)
	require.Equal(t, http.StatusOK, response.StatusCode)

	_, body = do(t, http.MethodGet, server.URL+"/b1/big", nil, nil)
	assert.Equal(t, "hello world", body)
	assert.Equal(t, []string{"bucket=b1&key=big"}, h.Bodies())
}

func TestFailedWriteDoesNotNotify(t *testing.T) {
	server, h := newServer(t)

	response, body := do(t, http.MethodPut, server.URL+"/missing/k1", strings.NewReader("hello"), nil)

	assert.Equal(t, http.StatusNotFound, response.StatusCode)
	assert.Contains(t, body, "<Code>NoSuchBucket</Code>")
	assert.Empty(t, h.Bodies())
}

func TestReadsAndDeletesDoNotNotify(t *testing.T) {
	server, h := newServer(t)
	do(t, http.MethodPut, server.URL+"/b1", nil, nil)
	do(t, http.MethodPut, server.URL+"/b1/logs/a.log", strings.NewReader("a"), nil)
	do(t, http.MethodPut, server.URL+"/b1/top.txt", strings.NewReader("b"), nil)
	require.Len(t, h.Bodies(), 2)

	response, body := do(t, http.MethodGet, server.URL+"/b1?delimiter=/", nil, nil)
	require.Equal(t, http.StatusOK, response.StatusCode)

	var list rainbowhttp.ListBucketResult
	require.NoError(t, xml.Unmarshal([]byte(body), &list))
	require.Len(t, list.Contents, 1)
	assert.Equal(t, "top.txt", list.Contents[0].Key)
	require.Len(t, list.CommonPrefixes, 1)
	assert.Equal(t, "logs/", list.CommonPrefixes[0].Prefix)

	response, _ = do(t, http.MethodHead, server.URL+"/b1/top.txt", nil, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	response, _ = do(t, http.MethodGet, server.URL+"/", nil, nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	response, _ = do(t, http.MethodDelete, server.URL+"/b1/top.txt", nil, nil)
	assert.Equal(t, http.StatusNoContent, response.StatusCode)

	response, _ = do(t, http.MethodGet, server.URL+"/b1/top.txt", nil, nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)

	response, _ = do(t, http.MethodDelete, server.URL+"/b1", nil, nil)
	assert.Equal(t, http.StatusConflict, response.StatusCode)

	assert.Len(t, h.Bodies(), 2)
}

func listObjects(t *testing.T, url string) rainbowhttp.ListBucketResult {
	t.Helper()

	response, body := do(t, http.MethodGet, url, nil, nil)
	require.Equal(t, http.StatusOK, response.StatusCode)

	var list rainbowhttp.ListBucketResult
	require.NoError(t, xml.Unmarshal([]byte(body), &list))

	return list
}

func TestListObjectsMaxKeys(t *testing.T) {
	server, _ := newServer(t)
	do(t, http.MethodPut, server.URL+"/b1", nil, nil)
	do(t, http.MethodPut, server.URL+"/b1/a.txt", strings.NewReader("a"), nil)
	do(t, http.MethodPut, server.URL+"/b1/b.txt", strings.NewReader("b"), nil)

	list := listObjects(t, server.URL+"/b1?max-keys=0")
	assert.Equal(t, 0, list.MaxKeys)
	assert.Empty(t, list.Contents)
	assert.Empty(t, list.NextMarker)
	assert.True(t, list.IsTruncated)

	list = listObjects(t, server.URL+"/b1?max-keys=1")
	require.Len(t, list.Contents, 1)
	assert.Equal(t, "a.txt", list.Contents[0].Key)
	assert.True(t, list.IsTruncated)

	list = listObjects(t, server.URL+"/b1?max-keys=4294967296")
	assert.Equal(t, blobstore.DefaultMaxKeys, list.MaxKeys)
	assert.Len(t, list.Contents, 2)
	assert.False(t, list.IsTruncated)

	response, _ := do(t, http.MethodGet, server.URL+"/b1?max-keys=-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestListObjectsMaxKeysZeroOnEmptyBucket(t *testing.T) {
	server, _ := newServer(t)
	do(t, http.MethodPut, server.URL+"/b1", nil, nil)

	list := listObjects(t, server.URL+"/b1?max-keys=0")
	assert.Empty(t, list.Contents)
	assert.False(t, list.IsTruncated)
}

func TestUnsupportedSubresource(t *testing.T) {
	server, _ := newServer(t)

	response, body := do(t, http.MethodGet, server.URL+"/b1?acl", nil, nil)

	assert.Equal(t, http.StatusNotImplemented, response.StatusCode)
	assert.Contains(t, body, "NotImplemented")
}
