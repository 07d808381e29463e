package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultPresignExpiry is how long generated download links stay valid.
const DefaultPresignExpiry = 15 * time.Minute

// ObjectStoreOptions configures the S3-compatible engines.
type ObjectStoreOptions struct {
	// Endpoint is host:port for MinIO, or an optional base URL for AWS S3.
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// PublicBaseURL, when set, is used to build unsigned access references
	// as PublicBaseURL/<key> for buckets that allow anonymous reads.
	PublicBaseURL string

	// PresignExpiry is the lifetime of presigned download links.
	PresignExpiry time.Duration
}

func (o *ObjectStoreOptions) applyDefaults() {
	if o.Region == "" {
		o.Region = "us-east-1"
	}
	if o.PresignExpiry <= 0 {
		o.PresignExpiry = DefaultPresignExpiry
	}
	o.PublicBaseURL = strings.TrimRight(o.PublicBaseURL, "/")
}

// publicURL returns the unsigned reference for key, or "" if the store is
// not publicly addressable.
func (o *ObjectStoreOptions) publicURL(key string) string {
	if o.PublicBaseURL == "" {
		return ""
	}
	return o.PublicBaseURL + "/" + url.PathEscape(key)
}

// attachmentDisposition is sent as response-content-disposition on presigned
// links so browsers save the file instead of rendering it.
func attachmentDisposition(key string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": key})
}

// isNetworkError reports whether err means the store could not be reached.
func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

// spoolBody returns content as a seekable body of known length. Object store
// clients need both to sign a PUT over plain HTTP, so readers that cannot
// seek, or whose size is unknown, are first copied to a temporary file. The
// returned cleanup func must always be called.
func spoolBody(ctx context.Context, content io.Reader, size int64) (io.ReadSeeker, int64, func(), error) {
	if rs, ok := content.(io.ReadSeeker); ok && size >= 0 {
		return rs, size, func() {}, nil
	}

	tmp, err := os.CreateTemp("", "filedrop-spool-*")
	if err != nil {
		return nil, 0, func() {}, fmt.Errorf("create spool file: %w", err)
	}
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}

	written, err := io.Copy(tmp, &contextReader{ctx: ctx, r: content})
	if err != nil {
		cleanup()
		return nil, 0, func() {}, fmt.Errorf("spool content: %w", err)
	}

	if size >= 0 && written != size {
		cleanup()
		return nil, 0, func() {}, fmt.Errorf("short read: got %d of %d bytes", written, size)
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, 0, func() {}, fmt.Errorf("rewind spool file: %w", err)
	}

	return tmp, written, cleanup, nil
}
