package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// stagingDir holds uploads that are still being written. It lives inside the
// data directory so publishing never crosses a filesystem boundary.
const stagingDir = ".staging"

// LocalFileStorage is a StorageEngine that keeps each file as a regular file
// directly under dataDir, named by its key. It has no public addressing, so
// downloads are always streamed.
type LocalFileStorage struct {
	dataDir string
}

var _ StorageEngine = (*LocalFileStorage)(nil)

// NewLocalFileStorage creates a new LocalFileStorage rooted at dataDir. The
// directory is created on first use.
func NewLocalFileStorage(dataDir string) *LocalFileStorage {
	return &LocalFileStorage{dataDir: dataDir}
}

// ObjectPath computes the full filesystem path for key.
func (s *LocalFileStorage) ObjectPath(key string) string {
	return filepath.Join(s.dataDir, key)
}

func (s *LocalFileStorage) ensureDataDir() error {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("%w: create data dir: %w", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *LocalFileStorage) List(ctx context.Context) ([]FileRecord, error) {
	if err := s.ensureDataDir(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: read data dir: %w", ErrStorageUnavailable, err)
	}

	records := make([]FileRecord, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Deleted between ReadDir and Info.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}

		records = append(records, FileRecord{
			Name:       entry.Name(),
			Size:       info.Size(),
			UploadDate: info.ModTime().UTC(),
		})
	}

	return records, nil
}

// Put writes content to a temp file under the staging directory and then
// publishes it under key, so List never sees a partial upload.
func (s *LocalFileStorage) Put(ctx context.Context, key string, content io.Reader, size int64) (FileRecord, error) {
	objPath := s.ObjectPath(key)

	if _, err := os.Lstat(objPath); err == nil {
		return FileRecord{}, ErrKeyExists
	} else if !errors.Is(err, fs.ErrNotExist) {
		return FileRecord{}, err
	}

	stagingPath := filepath.Join(s.dataDir, stagingDir)
	if err := os.MkdirAll(stagingPath, 0o755); err != nil {
		return FileRecord{}, fmt.Errorf("create staging dir: %w", err)
	}

	tmp, err := os.CreateTemp(stagingPath, "upload-*")
	if err != nil {
		return FileRecord{}, fmt.Errorf("create temp file: %w", err)
	}

	tempPath := tmp.Name()

	// After a hard link publish the temp name still exists and has to go;
	// after a rename this is a harmless ENOENT.
	defer os.Remove(tempPath)

	written, err := io.Copy(tmp, &contextReader{ctx: ctx, r: content})
	if err != nil {
		_ = tmp.Close()
		return FileRecord{}, fmt.Errorf("write temp file: %w", err)
	}

	if size >= 0 && written != size {
		_ = tmp.Close()
		return FileRecord{}, fmt.Errorf("short write: got %d of %d bytes", written, size)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return FileRecord{}, fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return FileRecord{}, fmt.Errorf("close temp file: %w", err)
	}

	if err := publishFile(tempPath, objPath); err != nil {
		return FileRecord{}, fmt.Errorf("publish %q: %w", key, err)
	}

	info, err := os.Stat(objPath)
	if err != nil {
		return FileRecord{}, err
	}

	return FileRecord{
		Name:       key,
		Size:       info.Size(),
		UploadDate: info.ModTime().UTC(),
	}, nil
}

func (s *LocalFileStorage) Open(ctx context.Context, key string) (DownloadTarget, error) {
	f, err := os.Open(s.ObjectPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DownloadTarget{}, ErrNotFound
		}
		return DownloadTarget{}, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return DownloadTarget{}, err
	}

	if !info.Mode().IsRegular() {
		_ = f.Close()
		return DownloadTarget{}, ErrNotFound
	}

	return DownloadTarget{
		Record: FileRecord{
			Name:       key,
			Size:       info.Size(),
			UploadDate: info.ModTime().UTC(),
		},
		Body: f,
	}, nil
}

func (s *LocalFileStorage) Delete(ctx context.Context, key string) error {
	objPath := s.ObjectPath(key)

	info, err := os.Lstat(objPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}

	if !info.Mode().IsRegular() {
		return ErrNotFound
	}

	if err := os.Remove(objPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}

	return nil
}
