package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"filedrop/internal/storage"
	"filedrop/internal/ui"
)

// multipartMemory is how much of a multipart upload is kept in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// Server serves the browser UI and the JSON file API on top of a
// storage.Gateway.
type Server struct {
	Config Config
}

// NewServer validates cfg and returns a new Server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("storage gateway must not be nil")
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	return &Server{Config: cfg}, nil
}

// Close closes any resources held by the Server.
func (s *Server) Close() error {
	return s.Config.Gateway.Close()
}

// writeJSON encodes v as JSON and writes it to w with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// writeError writes the {error} envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// isHTMX reports whether r was issued by htmx from the UI.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// downloadHref is where the UI links a record to.
func downloadHref(record storage.FileRecord) string {
	if record.AccessReference != "" {
		return record.AccessReference
	}
	return "/download/" + url.PathEscape(record.Name)
}

// handleHome implements GET / and renders the file browser.
func (s *Server) handleHome(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	records, err := s.Config.Gateway.List(ctx)
	if err != nil {
		http.Error(w, msgListFailed, http.StatusInternalServerError)
		return
	}

	// Newest first for display; the gateway itself makes no ordering promise.
	slices.SortFunc(records, func(a, b storage.FileRecord) int {
		if c := b.UploadDate.Compare(a.UploadDate); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})

	files := make([]ui.File, 0, len(records))
	for _, rec := range records {
		files = append(files, ui.File{
			Name:       rec.Name,
			Size:       rec.Size,
			UploadDate: rec.UploadDate,
			Href:       downloadHref(rec),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ui.FilesPage(files).Render(ctx, w); err != nil {
		slog.Error("failed to render files page", "error", err)
	}
}

// handleListFiles implements GET /files.
func (s *Server) handleListFiles(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	records, err := s.Config.Gateway.List(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgListFailed)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// upload is the content of an upload request, whatever its encoding.
type upload struct {
	name    string
	content io.Reader
	size    int64
}

// readUpload extracts the file from a multipart form (field "file", with an
// optional "name" field overriding the file name) or from a raw body named
// by the "name" query parameter or the X-File-Name header.
func readUpload(r *http.Request) (upload, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return upload{}, func() {}, err
		}
		cleanup := func() { _ = r.MultipartForm.RemoveAll() }

		file, header, err := r.FormFile("file")
		if err != nil {
			return upload{}, cleanup, errNoFile
		}

		name := header.Filename
		if override := r.FormValue("name"); override != "" {
			name = override
		}

		return upload{name: name, content: file, size: header.Size}, func() {
			_ = file.Close()
			cleanup()
		}, nil
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = r.Header.Get("X-File-Name")
	}

	size := r.ContentLength
	if size < 0 {
		size = -1
	}

	return upload{name: name, content: r.Body, size: size}, func() {}, nil
}

var errNoFile = errors.New("no file in upload")

// handleUpload implements POST /upload.
func (s *Server) handleUpload(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.Config.MaxUploadBytes)

	up, cleanup, err := readUpload(r)
	defer cleanup()

	if err == nil {
		var record storage.FileRecord
		record, err = s.Config.Gateway.Put(ctx, up.name, up.content, up.size)
		if err == nil {
			if isHTMX(r) {
				w.Header().Set("HX-Redirect", "/")
				w.WriteHeader(http.StatusOK)
				_ = ui.Message(msgUploaded, false).Render(ctx, w)
				return
			}
			writeJSON(w, http.StatusCreated, record)
			return
		}
	}

	status, message := uploadErrorStatus(err)
	if status == http.StatusBadRequest && !errors.Is(err, errNoFile) {
		slog.Warn("Rejected upload", "name", up.name, "error", err)
	}

	if isHTMX(r) {
		w.WriteHeader(status)
		_ = ui.Message(message, true).Render(ctx, w)
		return
	}
	writeError(w, status, message)
}

func uploadErrorStatus(err error) (int, string) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, msgTooLarge
	case errors.Is(err, errNoFile):
		return http.StatusBadRequest, msgNoFile
	case errors.Is(err, storage.ErrInvalidName):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, storage.ErrStorageWriteFailed), errors.Is(err, storage.ErrStorageUnavailable):
		return http.StatusInternalServerError, msgUploadFailed
	}

	// Anything else failed while reading the request itself.
	return http.StatusBadRequest, msgUploadFailed
}

// handleDownload implements GET /download/{name}.
func (s *Server) handleDownload(ctx context.Context, w http.ResponseWriter, r *http.Request, name string) {
	target, err := s.Config.Gateway.DownloadTarget(ctx, name)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, msgNotFound)
		case errors.Is(err, storage.ErrInvalidName):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, msgDownloadFailed)
		}
		return
	}

	if target.IsRedirect() {
		http.Redirect(w, r, target.AccessReference, http.StatusTemporaryRedirect)
		return
	}
	defer target.Body.Close()

	w.Header().Set("Content-Type", target.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.FormatInt(target.Record.Size, 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, target.Body); err != nil {
		slog.Error("failed to stream download", "key", name, "error", err)
	}
}

// handleDelete implements DELETE /delete/{name}.
func (s *Server) handleDelete(ctx context.Context, w http.ResponseWriter, r *http.Request, name string) {
	err := s.Config.Gateway.Delete(ctx, name)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, MessageResponse{Message: msgDeleted})
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, storage.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, msgDeleteFailed)
	}
}
