package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/logging"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func names(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}

func TestLoaderLoadsMatchingFilesSorted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.md", "# B")
	writeFile(t, dir, "a.md", "# A")
	writeFile(t, dir, "notes/c.md", "# C")
	writeFile(t, dir, "readme.txt", "not markdown")

	files, err := Loader{Dir: dir, Patterns: []string{"**/*.md"}}.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a.md", "b.md", "notes/c.md"}, names(files))
	assert.Equal(t, "# A", files[0].Content)
	assert.Equal(t, filepath.Join(dir, "notes", "c.md"), files[2].Path)
}

func TestLoaderDeduplicatesOverlappingPatterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "x")
	writeFile(t, dir, "b.markdown", "y")

	files, err := Loader{Dir: dir, Patterns: []string{"*.md", "**/*.md", "*.markdown"}}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.markdown"}, names(files))
}

func TestLoaderInvalidPattern(t *testing.T) {
	_, err := Loader{Dir: t.TempDir(), Patterns: []string{"[unclosed"}}.Load(context.Background())
	assert.ErrorContains(t, err, "invalid workspace pattern")
}

func TestLoaderEmptyWorkspace(t *testing.T) {
	files, err := Loader{Dir: t.TempDir(), Patterns: []string{"**/*.md"}}.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLoaderMatches(t *testing.T) {
	l := Loader{Patterns: []string{"**/*.md"}}
	assert.True(t, l.Matches("a.md"))
	assert.True(t, l.Matches("deep/er/a.md"))
	assert.False(t, l.Matches("a.txt"))
}

func TestWatcherDeliversNewFilesOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "existing.md", "already here")
	loader := Loader{Dir: dir, Patterns: []string{"*.md"}}
	known, err := loader.Load(context.Background())
	require.NoError(t, err)

	w, err := NewWatcher(loader, known, logging.Discard())
	require.NoError(t, err)

	var mu sync.Mutex
	var got []File
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(f File) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, f)
		})
	}()

	writeFile(t, dir, "dropped.md", "cats are great pets")
	writeFile(t, dir, "ignored.txt", "not markdown")
	writeFile(t, dir, "existing.md", "changed")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 20*time.Millisecond)

	// A second write to the same file must not deliver it again.
	writeFile(t, dir, "dropped.md", "cats are great pets, still")
	time.Sleep(100 * time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "dropped.md", got[0].Name)
	assert.Contains(t, got[0].Content, "cats are great pets")
}

func TestWatcherWaitsForChunkedWrites(t *testing.T) {
	dir := t.TempDir()
	loader := Loader{Dir: dir, Patterns: []string{"*.md"}}
	w, err := NewWatcher(loader, nil, logging.Discard())
	require.NoError(t, err)

	var mu sync.Mutex
	var got []File
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(f File) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, f)
		})
	}()

	f, err := os.Create(filepath.Join(dir, "big.md"))
	require.NoError(t, err)
	_, err = f.WriteString("first chunk about cats ")
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	_, err = f.WriteString("second chunk about aardvarks")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "first chunk about cats second chunk about aardvarks", got[0].Content)
}
