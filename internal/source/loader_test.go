package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docextract/internal/common"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Directory(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.txt"), "alpha")
	write(t, filepath.Join(root, "sub", "b.csv"), "x,y\n1,2\n")
	write(t, filepath.Join(root, "sub", "copy-of-a.txt"), "alpha")
	write(t, filepath.Join(root, "photo.jpg"), "jpeg")
	write(t, filepath.Join(root, ".cache", "c.txt"), "hidden")
	write(t, filepath.Join(root, ".notes.txt"), "hidden")

	l := NewLoader(Options{SkipHidden: true}, common.StorageConfig{}, nil)
	srcs, skipped, stats, err := l.Load(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Empty(t, skipped)

	var names []string
	for _, s := range srcs {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"a.txt", "b.csv"}, names)
	assert.Equal(t, "alpha", string(srcs[0].Data))
	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(1), stats.Duplicates)
}

func TestLoad_FilesAndLimits(t *testing.T) {
	root := t.TempDir()
	small := filepath.Join(root, "small.txt")
	big := filepath.Join(root, "big.txt")
	write(t, small, "ok")
	write(t, big, "this one is too large")

	l := NewLoader(Options{MaxBytes: 8}, common.StorageConfig{}, nil)
	srcs, skipped, stats, err := l.Load(context.Background(), []string{small, big})
	require.NoError(t, err)
	require.Len(t, srcs, 1)
	assert.Equal(t, small, srcs[0].Path)
	require.Len(t, skipped, 1)
	assert.Contains(t, skipped[0].Err, "larger than 8 bytes")
	assert.Equal(t, uint32(1), stats.Failed)
}

func TestLoad_MissingRoot(t *testing.T) {
	l := NewLoader(Options{}, common.StorageConfig{}, nil)
	_, _, _, err := l.Load(context.Background(), []string{filepath.Join(t.TempDir(), "nope")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseGSURI(t *testing.T) {
	tests := []struct {
		uri            string
		bucket, object string
		prefix         bool
		wantErr        bool
	}{
		{"gs://docs/contracts/acme.pdf", "docs", "contracts/acme.pdf", false, false},
		{"gs://docs/contracts/", "docs", "contracts/", true, false},
		{"gs://docs", "docs", "", true, false},
		{"gs:///file.pdf", "", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			b, o, p, err := parseGSURI(tt.uri)
			if tt.wantErr {
				assert.True(t, errors.Is(err, common.ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, b)
			assert.Equal(t, tt.object, o)
			assert.Equal(t, tt.prefix, p)
		})
	}
}

func TestClose_WithoutClient(t *testing.T) {
	assert.NoError(t, NewLoader(Options{}, common.StorageConfig{}, nil).Close())
}
