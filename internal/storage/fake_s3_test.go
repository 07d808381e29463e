package storage

import (
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeS3 is an in-memory stand-in for the S3 calls the object store engines
// make against one bucket: HEAD, GET, PUT and DELETE on objects, and
// ListObjectsV2.
type fakeS3 struct {
	bucket string

	mu      sync.Mutex
	objects map[string]fakeObject

	// hidden keys answer HEAD with 404 while still existing, as if another
	// writer created them right after the check.
	hidden map[string]bool
}

type fakeObject struct {
	content  []byte
	modified time.Time
}

type fakeListResult struct {
	XMLName     xml.Name `xml:"ListBucketResult"`
	Xmlns       string   `xml:"xmlns,attr"`
	Name        string
	KeyCount    int
	MaxKeys     int
	IsTruncated bool
	Contents    []fakeListEntry
}

type fakeListEntry struct {
	Key          string
	LastModified string
	ETag         string
	Size         int64
	StorageClass string
}

type fakeError struct {
	XMLName xml.Name `xml:"Error"`
	Code    string
	Message string
}

// newFakeS3 starts a fake endpoint serving bucket. It is shut down when the
// test ends.
func newFakeS3(t *testing.T, bucket string) (*fakeS3, *httptest.Server) {
	t.Helper()

	fake := &fakeS3{
		bucket:  bucket,
		objects: make(map[string]fakeObject),
		hidden:  make(map[string]bool),
	}

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, srv
}

func (f *fakeS3) put(key string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = fakeObject{content: content, modified: time.Now().UTC().Truncate(time.Second)}
}

func (f *fakeS3) hide(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hidden[key] = true
}

func (f *fakeS3) content(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	return obj.content, ok
}

func writeFakeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_ = xml.NewEncoder(w).Encode(fakeError{Code: code, Message: code})
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest, ok := strings.CutPrefix(r.URL.Path, "/"+f.bucket)
	if !ok {
		writeFakeError(w, http.StatusNotFound, "NoSuchBucket")
		return
	}
	key := strings.TrimPrefix(rest, "/")

	f.mu.Lock()
	defer f.mu.Unlock()

	if key == "" {
		switch r.Method {
		case http.MethodGet:
			f.list(w)
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		default:
			writeFakeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed")
		}
		return
	}

	obj, exists := f.objects[key]

	switch r.Method {
	case http.MethodHead, http.MethodGet:
		if !exists || (r.Method == http.MethodHead && f.hidden[key]) {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			writeFakeError(w, http.StatusNotFound, "NoSuchKey")
			return
		}

		h := w.Header()
		h.Set("Content-Length", strconv.Itoa(len(obj.content)))
		h.Set("Content-Type", "application/octet-stream")
		h.Set("Last-Modified", obj.modified.Format(http.TimeFormat))
		h.Set("ETag", `"fake-etag"`)
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(obj.content)
		}

	case http.MethodPut:
		if exists && r.Header.Get("If-None-Match") == "*" {
			writeFakeError(w, http.StatusPreconditionFailed, "PreconditionFailed")
			return
		}

		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeFakeError(w, http.StatusBadRequest, "IncompleteBody")
			return
		}

		f.objects[key] = fakeObject{content: data, modified: time.Now().UTC().Truncate(time.Second)}
		w.Header().Set("ETag", `"fake-etag"`)
		w.WriteHeader(http.StatusOK)

	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)

	default:
		writeFakeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed")
	}
}

func (f *fakeS3) list(w http.ResponseWriter) {
	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	result := fakeListResult{
		Xmlns:    "http://s3.amazonaws.com/doc/2006-03-01/",
		Name:     f.bucket,
		KeyCount: len(keys),
		MaxKeys:  1000,
	}
	for _, key := range keys {
		obj := f.objects[key]
		result.Contents = append(result.Contents, fakeListEntry{
			Key:          key,
			LastModified: obj.modified.Format("2006-01-02T15:04:05.000Z"),
			ETag:         `"fake-etag"`,
			Size:         int64(len(obj.content)),
			StorageClass: "STANDARD",
		})
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, xml.Header)
	_ = xml.NewEncoder(w).Encode(result)
}
