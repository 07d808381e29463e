package storage

import (
	"io"
	"time"
)

// FileRecord describes one stored object.
type FileRecord struct {
	Name            string    `json:"name"`
	Size            int64     `json:"size"`
	UploadDate      time.Time `json:"uploadDate"`
	AccessReference string    `json:"accessReference,omitempty"`
}

// DownloadTarget is what a download resolves to. When AccessReference is set
// the client should be redirected to it; otherwise Body holds the content and
// must be closed by the caller.
type DownloadTarget struct {
	Record          FileRecord
	AccessReference string
	Body            io.ReadCloser
	ContentType     string
}

// IsRedirect reports whether the target should be served as a redirect.
func (t DownloadTarget) IsRedirect() bool {
	return t.AccessReference != ""
}
