package storage

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// MaxNameLength bounds the caller-supplied part of a key so that the full key
// fits comfortably in a single filesystem path component.
const MaxNameLength = 200

// MaxKeyLength bounds keys accepted by download and delete.
const MaxKeyLength = 255

// KeyGenerator derives storage keys of the form "<millis>-<name>". The
// millisecond prefix is forced to be strictly increasing for the lifetime of
// the generator, so two calls never produce the same prefix.
type KeyGenerator struct {
	now  func() time.Time
	last atomic.Int64
}

// NewKeyGenerator returns a KeyGenerator using now as its clock. A nil now
// uses time.Now.
func NewKeyGenerator(now func() time.Time) *KeyGenerator {
	if now == nil {
		now = time.Now
	}
	return &KeyGenerator{now: now}
}

// Next returns a fresh key for name. name must already be normalized.
func (g *KeyGenerator) Next(name string) string {
	for {
		prev := g.last.Load()
		ms := g.now().UnixMilli()
		if ms <= prev {
			ms = prev + 1
		}
		if g.last.CompareAndSwap(prev, ms) {
			return strconv.FormatInt(ms, 10) + "-" + name
		}
	}
}

// NormalizeName reduces a client-supplied file name to its final path
// element and checks that it is usable as part of a key.
func NormalizeName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)

	if len(name) > MaxNameLength {
		return "", fmt.Errorf("%w: name longer than %d bytes", ErrInvalidName, MaxNameLength)
	}
	if err := checkSegment(name); err != nil {
		return "", err
	}
	return name, nil
}

// ValidateKey checks a key received from a client before it is handed to a
// backend. Unlike NormalizeName it never rewrites its input.
func ValidateKey(key string) error {
	if len(key) > MaxKeyLength {
		return fmt.Errorf("%w: name longer than %d bytes", ErrInvalidName, MaxKeyLength)
	}
	if strings.ContainsAny(key, "/\\") {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, key)
	}
	return checkSegment(key)
}

func checkSegment(s string) error {
	if s == "" || s == "." || s == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	// Names travel as JSON strings, which cannot carry invalid UTF-8 intact.
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: name is not valid UTF-8", ErrInvalidName)
	}
	if strings.ContainsFunc(s, func(c rune) bool {
		return c < 0x20 || c == 0x7f
	}) {
		return fmt.Errorf("%w: control characters are not allowed", ErrInvalidName)
	}
	return nil
}
