package ui_test

import (
	"strings"
	"testing"
	"time"

	"filedrop/internal/ui"

	"github.com/stretchr/testify/require"
)

func TestFilesPageEmpty(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	require.NoError(t, ui.FilesPage(nil).Render(t.Context(), &sb), "render error")

	out := sb.String()
	require.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"), "expected full HTML document")
	require.Contains(t, out, "No files uploaded yet")
	require.Contains(t, out, "action=\"/upload\"")
	require.NotContains(t, out, "<table>")
}

func TestFilesPageRows(t *testing.T) {
	t.Parallel()

	files := []ui.File{
		{
			Name:       "1700000000000-report.pdf",
			Size:       1536,
			UploadDate: time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC),
			Href:       "/download/1700000000000-report.pdf",
		},
		{
			Name:       "1700000000001-<script>.txt",
			Size:       0,
			UploadDate: time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC),
			Href:       "https://cdn.example.com/x?a=1&b=2",
		},
	}

	var sb strings.Builder
	require.NoError(t, ui.FilesPage(files).Render(t.Context(), &sb), "render error")
	out := sb.String()

	require.Contains(t, out, "Files (2)")
	require.Contains(t, out, "1.5 KiB")
	require.Contains(t, out, "0 B")
	require.Contains(t, out, "2025-03-01 12:30:00 UTC")
	require.Contains(t, out, "hx-delete=\"/delete/1700000000000-report.pdf\"")
	require.Contains(t, out, "href=\"https://cdn.example.com/x?a=1&amp;b=2\"")
	require.NotContains(t, out, "<script>.txt", "file names must be escaped")
	require.Contains(t, out, "&lt;script&gt;.txt")
}

func TestFileIcon(t *testing.T) {
	t.Parallel()

	require.Equal(t, "🖼️", ui.FileIcon("photo.PNG"))
	require.Equal(t, "📦", ui.FileIcon("bundle.zip"))
	require.Equal(t, "📄", ui.FileIcon("mystery.bin"))
}

func TestMessage(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	require.NoError(t, ui.Message("Upload failed", true).Render(t.Context(), &sb))
	require.Equal(t, "<p class=\"error-message\">Upload failed</p>", sb.String())
}
