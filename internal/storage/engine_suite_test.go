package storage_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"filedrop/internal/storage"

	"github.com/stretchr/testify/require"
)

// runEngineSuite checks the StorageEngine contract against any engine that
// can be created locally.
func runEngineSuite(t *testing.T, newEngine func(t *testing.T) storage.StorageEngine) {
	t.Helper()

	t.Run("empty list", func(t *testing.T) {
		t.Parallel()
		engine := newEngine(t)

		records, err := engine.List(t.Context())
		require.NoError(t, err, "List error")
		require.Empty(t, records, "expected no records")
	})

	t.Run("put then open", func(t *testing.T) {
		t.Parallel()
		engine := newEngine(t)

		payload := []byte("hello engine")
		record, err := engine.Put(t.Context(), "1-hello.txt", bytes.NewReader(payload), int64(len(payload)))
		require.NoError(t, err, "Put error")
		require.Equal(t, "1-hello.txt", record.Name)
		require.EqualValues(t, len(payload), record.Size)
		require.False(t, record.UploadDate.IsZero(), "upload date should be set")

		target, err := engine.Open(t.Context(), "1-hello.txt")
		require.NoError(t, err, "Open error")
		require.NotNil(t, target.Body, "expected a stream")
		defer target.Body.Close()

		got, err := io.ReadAll(target.Body)
		require.NoError(t, err, "reading body")
		require.Equal(t, payload, got, "payload mismatch")
	})

	t.Run("put unknown size", func(t *testing.T) {
		t.Parallel()
		engine := newEngine(t)

		record, err := engine.Put(t.Context(), "1-stream.bin", strings.NewReader("streamed"), -1)
		require.NoError(t, err, "Put error")
		require.EqualValues(t, len("streamed"), record.Size)
	})

	t.Run("put short content", func(t *testing.T) {
		t.Parallel()
		engine := newEngine(t)

		_, err := engine.Put(t.Context(), "1-short.bin", strings.NewReader("abc"), 10)
		require.Error(t, err, "expected error when content is shorter than size")

		records, err := engine.List(t.Context())
		require.NoError(t, err, "List error")
		require.Empty(t, records, "failed upload must not be listed")
	})

	t.Run("existing key", func(t *testing.T) {
		t.Parallel()
		engine := newEngine(t)

		_, err := engine.Put(t.Context(), "1-dup.txt", strings.NewReader("first"), 5)
		require.NoError(t, err, "first Put error")

		second := strings.NewReader("second")
		_, err = engine.Put(t.Context(), "1-dup.txt", second, 6)
		require.ErrorIs(t, err, storage.ErrKeyExists)
		require.Equal(t, 6, second.Len(), "content must not be consumed on ErrKeyExists")

		target, err := engine.Open(t.Context(), "1-dup.txt")
		require.NoError(t, err, "Open error")
		defer target.Body.Close()
		got, err := io.ReadAll(target.Body)
		require.NoError(t, err, "reading body")
		require.Equal(t, "first", string(got), "existing object must not be overwritten")
	})

	t.Run("list", func(t *testing.T) {
		t.Parallel()
		engine := newEngine(t)

		want := map[string]int64{
			"1-a.txt": 3,
			"2-b.pdf": 5,
		}
		for key, size := range want {
			_, err := engine.Put(t.Context(), key, bytes.NewReader(make([]byte, size)), size)
			require.NoErrorf(t, err, "Put %s error", key)
		}

		records, err := engine.List(t.Context())
		require.NoError(t, err, "List error")
		require.Len(t, records, len(want))

		for _, r := range records {
			size, ok := want[r.Name]
			require.Truef(t, ok, "unexpected record %q", r.Name)
			require.Equalf(t, size, r.Size, "size of %q", r.Name)
		}
	})

	t.Run("open missing", func(t *testing.T) {
		t.Parallel()
		engine := newEngine(t)

		_, err := engine.Open(t.Context(), "1-missing.txt")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()
		engine := newEngine(t)

		_, err := engine.Put(t.Context(), "1-gone.txt", strings.NewReader("bye"), 3)
		require.NoError(t, err, "Put error")

		require.NoError(t, engine.Delete(t.Context(), "1-gone.txt"), "Delete error")

		_, err = engine.Open(t.Context(), "1-gone.txt")
		require.ErrorIs(t, err, storage.ErrNotFound)

		err = engine.Delete(t.Context(), "1-gone.txt")
		require.ErrorIs(t, err, storage.ErrNotFound, "second delete should report not found")
	})
}
