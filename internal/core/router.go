package core

import (
	"net/http"
)

// Handler returns an http.Handler serving the UI and the file API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s.handleHome(ctx, w, r)
	})

	mux.HandleFunc("GET /files", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s.handleListFiles(ctx, w, r)
	})

	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s.handleUpload(ctx, w, r)
	})

	mux.HandleFunc("GET /download/{name}", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		name := r.PathValue("name")
		s.handleDownload(ctx, w, r, name)
	})

	mux.HandleFunc("DELETE /delete/{name}", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		name := r.PathValue("name")
		s.handleDelete(ctx, w, r, name)
	})

	// Add middleware
	handler := s.RequireAuthentication(mux)
	handler = LogRequest(handler)
	handler = Recoverer(handler)
	return handler
}
