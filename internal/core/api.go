package core

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the JSON body of calls that return no data.
type MessageResponse struct {
	Message string `json:"message"`
}

// User-facing messages. Backend details stay in the logs.
const (
	msgListFailed     = "Failed to list files"
	msgUploadFailed   = "Upload failed"
	msgDownloadFailed = "Download failed"
	msgDeleteFailed   = "Delete failed"
	msgNotFound       = "File not found"
	msgNoFile         = "Please select a file"
	msgTooLarge       = "File too large"
	msgUnauthorized   = "Unauthorized"
	msgDeleted        = "File deleted successfully"
	msgUploaded       = "File uploaded successfully"
)
