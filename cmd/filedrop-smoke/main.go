package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"filedrop/internal/storage"
)

// getenv returns the value of the environment variable named by key or
// fallback if the variable is not present.
func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

const (
	ObjectName    = "example.txt"
	ObjectContent = "Hello from the filedrop smoke test!\n"
)

// UploadFile stores content through the gateway and returns its key.
func UploadFile(ctx context.Context, gateway *storage.Gateway, name string, content []byte) (string, error) {
	record, err := gateway.Put(ctx, name, bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to upload %q: %w", name, err)
	}

	slog.Info("Uploaded file", "key", record.Name, "size", record.Size, "reference", record.AccessReference)
	return record.Name, nil
}

// ListFiles logs every stored file.
func ListFiles(ctx context.Context, gateway *storage.Gateway) error {
	records, err := gateway.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}

	for _, r := range records {
		slog.Info("Stored file", "key", r.Name, "size", r.Size, "uploaded", r.UploadDate)
	}
	return nil
}

// DownloadFile fetches key either from the stream the gateway returns or by
// following its access reference.
func DownloadFile(ctx context.Context, gateway *storage.Gateway, key string) ([]byte, error) {
	target, err := gateway.DownloadTarget(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", key, err)
	}

	if !target.IsRedirect() {
		defer target.Body.Close()
		return io.ReadAll(target.Body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.AccessReference, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to follow access reference: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("access reference answered %s", resp.Status)
	}

	slog.Info("Followed access reference", "disposition", resp.Header.Get("Content-Disposition"))
	return io.ReadAll(resp.Body)
}

func Run(ctx context.Context, gateway *storage.Gateway) error {

	// 1. Upload the same name twice; neither may overwrite the other.
	first, err := UploadFile(ctx, gateway, ObjectName, []byte(ObjectContent))
	if err != nil {
		return err
	}

	second, err := UploadFile(ctx, gateway, ObjectName, []byte(ObjectContent))
	if err != nil {
		return err
	}

	if first == second {
		return fmt.Errorf("two uploads of %q share key %q", ObjectName, first)
	}

	// 2. List everything in the store.
	if err := ListFiles(ctx, gateway); err != nil {
		return err
	}

	// 3. Read the first upload back.
	content, err := DownloadFile(ctx, gateway, first)
	if err != nil {
		return err
	}

	if string(content) != ObjectContent {
		return fmt.Errorf("downloaded %d bytes that differ from the upload", len(content))
	}
	slog.Info("Downloaded file", "key", first, "bytes", len(content))

	// 4. Clean up, and check that a second delete reports the file missing.
	for _, key := range []string{first, second} {
		if err := gateway.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete %q: %w", key, err)
		}
	}

	if err := gateway.Delete(ctx, first); !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("expected not found deleting %q again, got %v", first, err)
	}

	slog.Info("Smoke test passed", "backend", getenv("FILEDROP_BACKEND", storage.EngineFilesystem))
	return nil
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := storage.EngineConfig{
		Kind:    getenv("FILEDROP_BACKEND", storage.EngineFilesystem),
		DataDir: getenv("FILEDROP_DATA_DIR", "./uploads"),
		DBPath:  getenv("FILEDROP_DB_PATH", "./filedrop.db"),
		ObjectStore: storage.ObjectStoreOptions{
			Endpoint:      getenv("FILEDROP_S3_ENDPOINT", "localhost:9000"),
			Region:        getenv("FILEDROP_S3_REGION", "us-east-1"),
			Bucket:        getenv("FILEDROP_S3_BUCKET", "uploads"),
			AccessKey:     getenv("FILEDROP_S3_ACCESS_KEY", "minioadmin"),
			SecretKey:     getenv("FILEDROP_S3_SECRET_KEY", "minioadmin"),
			PublicBaseURL: getenv("FILEDROP_S3_PUBLIC_URL", ""),
		},
	}

	engine, err := storage.NewEngine(ctx, cfg)
	if err != nil {
		slog.Error("failed to create storage engine", "backend", cfg.Kind, "err", err)
		os.Exit(1)
	}

	gateway := storage.NewGateway(engine)
	defer gateway.Close()

	if err := Run(ctx, gateway); err != nil {
		slog.Error("smoke test failed", "err", err)
		os.Exit(1)
	}
}
