package ui

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"
)

// File represents a single stored file for display.
type File struct {
	Name       string
	Size       int64
	UploadDate time.Time

	// Href is where the download link points: the direct access reference
	// when the backend has one, the download route otherwise.
	Href string
}

var fileIcons = map[string]string{
	"pdf":  "📄",
	"doc":  "📝",
	"docx": "📝",
	"xls":  "📊",
	"xlsx": "📊",
	"csv":  "📊",
	"jpg":  "🖼️",
	"jpeg": "🖼️",
	"png":  "🖼️",
	"gif":  "🖼️",
	"zip":  "📦",
	"txt":  "📃",
	"json": "📋",
}

// FileIcon returns the icon shown next to name in the file table.
func FileIcon(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if icon, ok := fileIcons[ext]; ok {
		return icon
	}
	return "📄"
}

// FormatSize renders a byte count for humans, e.g. "1.5 KiB".
func FormatSize(size int64) string {
	if size <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(size))
}

// Layout renders a full HTML page with a title and body component.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<!DOCTYPE html><html lang=\"en\">")
		if err != nil {
			return err
		}

		_, err = io.WriteString(w, "<head><meta charset=\"utf-8\">")
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, "<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "<title>%s</title>", html.EscapeString(title))
		if err != nil {
			return err
		}
		// Minimal modern CSS framework (Pico.css) via CDN.
		_, err = io.WriteString(w, "<link rel=\"stylesheet\" href=\"https://unpkg.com/@picocss/pico@2/css/pico.min.css\">")
		if err != nil {
			return err
		}
		// HTMX via CDN.
		_, err = io.WriteString(w, "<script src=\"https://unpkg.com/htmx.org@1.9.12\" integrity=\"sha384-srD8tA5lZgUlAXb/DvBy1UG775H8sG8vyXK3w63U1zrtRXkuTDIaTzGvX2UksI0M\" crossorigin=\"anonymous\"></script>")
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, "</head>")
		if err != nil {
			return err
		}

		_, err = io.WriteString(w, "<body><main class=\"container\">")
		if err != nil {
			return err
		}

		if err := body.Render(ctx, w); err != nil {
			return err
		}

		_, err = io.WriteString(w, "</main></body></html>")
		return err
	})
}

// UploadForm renders the upload form. It posts multipart data to /upload;
// with htmx the server answers with HX-Redirect back to the listing, and
// error responses are swapped into #upload-message.
func UploadForm() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<article><header><strong>Upload a file</strong></header>")
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, "<form method=\"post\" action=\"/upload\" enctype=\"multipart/form-data\" hx-post=\"/upload\" hx-encoding=\"multipart/form-data\" hx-target=\"#upload-message\" hx-on::before-swap=\"if(event.detail.xhr.status>=400){event.detail.shouldSwap=true;event.detail.isError=false}\">")
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, "<input type=\"file\" name=\"file\" id=\"file-upload\" required>")
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, "<button type=\"submit\">Upload</button></form><div id=\"upload-message\"></div></article>")
		return err
	})
}

// FilesPage renders the upload form followed by the list of stored files.
func FilesPage(files []File) templ.Component {
	return Layout("filedrop", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<section><header><h1>filedrop</h1>")
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, "<p>Upload, download and delete files.</p></header>")
		if err != nil {
			return err
		}

		if err := UploadForm().Render(ctx, w); err != nil {
			return err
		}

		_, err = fmt.Fprintf(w, "<h2>Files (%d)</h2>", len(files))
		if err != nil {
			return err
		}

		if len(files) == 0 {
			_, err = io.WriteString(w, "<p>No files uploaded yet</p></section>")
			return err
		}

		_, err = io.WriteString(w, "<table><thead><tr><th>Name</th><th>Size</th><th>Uploaded</th><th></th></tr></thead><tbody>")
		if err != nil {
			return err
		}

		for _, f := range files {
			name := html.EscapeString(f.Name)
			row := fmt.Sprintf(
				"<tr><td>%s <a href=\"%s\" target=\"_blank\" rel=\"noopener\">%s</a></td><td>%s</td><td><time datetime=\"%s\" title=\"%s\">%s</time></td>"+
					"<td><button class=\"secondary outline\" hx-delete=\"/delete/%s\" hx-confirm=\"Are you sure you want to delete %s?\" hx-target=\"closest tr\" hx-swap=\"delete\">Delete</button></td></tr>",
				FileIcon(f.Name),
				html.EscapeString(f.Href),
				name,
				html.EscapeString(FormatSize(f.Size)),
				f.UploadDate.UTC().Format(time.RFC3339),
				html.EscapeString(humanize.Time(f.UploadDate)),
				f.UploadDate.UTC().Format("2006-01-02 15:04:05 UTC"),
				html.EscapeString(url.PathEscape(f.Name)),
				name,
			)
			_, err = io.WriteString(w, row)
			if err != nil {
				return err
			}
		}

		_, err = io.WriteString(w, "</tbody></table></section>")
		return err
	}))
}

// Message renders a short status line, used as the htmx swap target after an
// upload attempt.
func Message(text string, isError bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		class := "success-message"
		if isError {
			class = "error-message"
		}
		_, err := fmt.Fprintf(w, "<p class=\"%s\">%s</p>", class, html.EscapeString(text))
		return err
	})
}
