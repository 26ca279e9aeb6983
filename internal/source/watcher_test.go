package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextDrop(t *testing.T, drops <-chan []string) []string {
	t.Helper()
	select {
	case d, ok := <-drops:
		require.True(t, ok, "drops closed")
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("no drop within 5s")
		return nil
	}
}

func TestWatch_InitialScanAndNewFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("%PDF"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".a.pdf"), []byte("%PDF"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drops, _, err := Watch(ctx, WatchConfig{Roots: []string{dir}, InitialScan: true, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "a.pdf")}, nextDrop(t, drops))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte("c"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.bin"), []byte("x"), 0o644))
	assert.Equal(t, []string{filepath.Join(dir, "b.csv"), filepath.Join(dir, "c.txt")}, nextDrop(t, drops))

	cancel()
	for range drops {
	}
}

func TestWatch_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drops, _, err := Watch(ctx, WatchConfig{Roots: []string{dir}, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)

	sub := filepath.Join(dir, "2026-10")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// let the watcher register the new directory
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "memo.txt"), []byte("m"), 0o644))

	assert.Contains(t, nextDrop(t, drops), filepath.Join(sub, "memo.txt"))
}

func TestWatch_NoRoots(t *testing.T) {
	_, _, err := Watch(context.Background(), WatchConfig{})
	assert.Error(t, err)
}
