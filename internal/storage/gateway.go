package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultTimeout bounds every backend call when no timeout is configured.
	DefaultTimeout = 30 * time.Second

	// maxPutAttempts bounds how many fresh keys Put derives when the backend
	// reports a collision.
	maxPutAttempts = 5
)

// Gateway is the uniform facade in front of a StorageEngine. It owns name
// validation, key derivation, timeouts and error classification so that
// engines only have to deal with their own storage.
type Gateway struct {
	engine  StorageEngine
	keys    *KeyGenerator
	timeout time.Duration
}

type GatewayOption func(*Gateway)

// WithTimeout sets the deadline applied to each backend call.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.timeout = d
	}
}

// WithKeyGenerator replaces the default clock-based key generator.
func WithKeyGenerator(keys *KeyGenerator) GatewayOption {
	return func(g *Gateway) {
		g.keys = keys
	}
}

// NewGateway wraps engine.
func NewGateway(engine StorageEngine, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		engine:  engine,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.keys == nil {
		g.keys = NewKeyGenerator(nil)
	}
	return g
}

// Close releases the engine if it holds resources.
func (g *Gateway) Close() error {
	if c, ok := g.engine.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

// List returns every stored file. An empty store yields an empty slice.
func (g *Gateway) List(ctx context.Context) ([]FileRecord, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	records, err := g.engine.List(ctx)
	if err != nil {
		err = classify(err, ErrStorageUnavailable)
		slog.Error("Failed to list files", "error", err)
		return nil, err
	}

	if records == nil {
		records = []FileRecord{}
	}
	return records, nil
}

// Put stores content under a key derived from desiredName and returns the
// record of the stored object. Existing objects are never overwritten.
// The timeout covers reading content as well, so an upload that cannot be
// read in time fails as ErrStorageUnavailable.
func (g *Gateway) Put(ctx context.Context, desiredName string, content io.Reader, size int64) (FileRecord, error) {
	name, err := NormalizeName(desiredName)
	if err != nil {
		return FileRecord{}, err
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	for range maxPutAttempts {
		key := g.keys.Next(name)

		record, err := g.engine.Put(ctx, key, content, size)
		if errors.Is(err, ErrKeyExists) {
			slog.Warn("Storage key already taken, deriving a new one", "key", key)
			continue
		}

		if err != nil {
			err = classify(err, ErrStorageWriteFailed)
			slog.Error("Failed to store file", "key", key, "error", err)
			return FileRecord{}, err
		}

		slog.Info("Stored file", "key", record.Name, "size", record.Size)
		return record, nil
	}

	err = fmt.Errorf("%w: no free key for %q after %d attempts", ErrStorageWriteFailed, name, maxPutAttempts)
	slog.Error("Failed to store file", "name", name, "error", err)
	return FileRecord{}, err
}

// DownloadTarget resolves name to a redirect reference or a content stream.
// Streams carry their content type and must be closed by the caller.
func (g *Gateway) DownloadTarget(ctx context.Context, name string) (DownloadTarget, error) {
	if err := ValidateKey(name); err != nil {
		return DownloadTarget{}, err
	}

	ctx, cancel := g.withTimeout(ctx)

	target, err := g.engine.Open(ctx, name)
	if err != nil {
		cancel()
		err = classify(err, ErrStorageUnavailable)
		if errors.Is(err, ErrNotFound) {
			slog.Warn("Download of missing file", "key", name)
		} else {
			slog.Error("Failed to resolve download", "key", name, "error", err)
		}
		return DownloadTarget{}, err
	}

	if target.Body == nil {
		cancel()
		if !target.IsRedirect() {
			return DownloadTarget{}, fmt.Errorf("%w: backend returned neither stream nor reference for %q", ErrStorageUnavailable, name)
		}
		return target, nil
	}

	// The stream may depend on ctx, so the deadline is released only once
	// the caller is done reading.
	target.Body = &cancelOnClose{ReadCloser: target.Body, cancel: cancel}
	target.ContentType = ContentTypeFor(name)
	return target, nil
}

// Delete removes name. Deleting a missing file returns ErrNotFound.
func (g *Gateway) Delete(ctx context.Context, name string) error {
	if err := ValidateKey(name); err != nil {
		return err
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	if err := g.engine.Delete(ctx, name); err != nil {
		err = classify(err, ErrStorageWriteFailed)
		if errors.Is(err, ErrNotFound) {
			slog.Warn("Delete of missing file", "key", name)
		} else {
			slog.Error("Failed to delete file", "key", name, "error", err)
		}
		return err
	}

	slog.Info("Deleted file", "key", name)
	return nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
