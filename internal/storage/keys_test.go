package storage_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"filedrop/internal/storage"

	"github.com/stretchr/testify/require"
)

func TestKeyGeneratorFormat(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1700000000123)
	keys := storage.NewKeyGenerator(func() time.Time { return now })

	require.Equal(t, "1700000000123-report.pdf", keys.Next("report.pdf"))
}

func TestKeyGeneratorStrictlyIncreasing(t *testing.T) {
	t.Parallel()

	// A frozen clock still has to yield distinct prefixes.
	now := time.UnixMilli(1000)
	keys := storage.NewKeyGenerator(func() time.Time { return now })

	require.Equal(t, "1000-a.txt", keys.Next("a.txt"))
	require.Equal(t, "1001-a.txt", keys.Next("a.txt"))
	require.Equal(t, "1002-a.txt", keys.Next("a.txt"))
}

func TestKeyGeneratorConcurrentUnique(t *testing.T) {
	t.Parallel()

	keys := storage.NewKeyGenerator(nil)

	const workers = 8
	const perWorker = 200

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				key := keys.Next("same.txt")
				mu.Lock()
				seen[key] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker, "every key should be distinct")
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "report.pdf", want: "report.pdf"},
		{name: "unix path", input: "/home/user/report.pdf", want: "report.pdf"},
		{name: "windows path", input: `C:\Users\me\report.pdf`, want: "report.pdf"},
		{name: "surrounding space", input: "  notes.txt ", want: "notes.txt"},
		{name: "unicode", input: "résumé.docx", want: "résumé.docx"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := storage.NormalizeName(tc.input)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeNameRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "blank", input: "   "},
		{name: "dot", input: "."},
		{name: "dot dot", input: "dir/.."},
		{name: "trailing slash", input: "dir/"},
		{name: "control character", input: "bad\x00name"},
		{name: "invalid utf-8", input: "caf\xe9.txt"},
		{name: "too long", input: strings.Repeat("a", storage.MaxNameLength+1)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := storage.NormalizeName(tc.input)
			require.ErrorIs(t, err, storage.ErrInvalidName)
		})
	}
}

func TestValidateKey(t *testing.T) {
	t.Parallel()

	require.NoError(t, storage.ValidateKey("1700000000123-report.pdf"))

	for _, key := range []string{"", ".", "..", "a/b", `a\b`, "../etc/passwd", "tab\tname", "1-caf\xe9.txt", strings.Repeat("k", storage.MaxKeyLength+1)} {
		require.ErrorIsf(t, storage.ValidateKey(key), storage.ErrInvalidName, "key %q", key)
	}
}
