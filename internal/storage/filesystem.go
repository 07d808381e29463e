package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/natefinch/atomic"
)

// linkFile creates the published hard link. Tests swap it to exercise the
// rename fallback.
var linkFile = os.Link

// publishFile makes the fully written file at tempPath visible under
// destPath in a single step, without ever replacing an existing destPath.
func publishFile(tempPath string, destPath string) error {

	// A hard link is both atomic and exclusive: it fails if destPath exists,
	// and readers either see the complete file or nothing.
	err := linkFile(tempPath, destPath)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %s", errPublishConflict, destPath)
	}

	// NOTE: some filesystems (FAT, certain network mounts) refuse hard links.
	// Fall back to an atomic rename after checking the destination is free.
	// The check and the rename are not one operation, but keys are unique
	// per process so only a foreign writer could race us here.
	if _, statErr := os.Lstat(destPath); statErr == nil {
		return fmt.Errorf("%w: %s", errPublishConflict, destPath)
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return statErr
	}

	return atomic.ReplaceFile(tempPath, destPath)
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
