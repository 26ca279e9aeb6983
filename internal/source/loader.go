package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/textextract"
)

// DefaultMaxBytes caps a single document read into memory.
const DefaultMaxBytes = 64 << 20

type Options struct {
	AllowedExts map[string]struct{} // lowercased sans '.'; nil -> constants.AllowedExtensions
	SkipHidden  bool
	MaxBytes    int64
}

// Stats summarizes one Load.
type Stats struct {
	Scanned    uint32
	Matched    uint32
	Duplicates uint32
	Failed     uint32
}

// Skipped is a location that was matched but not loaded.
type Skipped struct {
	Location string
	Err      string
}

// Loader reads documents from local files, local directories and gs:// URIs. Documents with
// identical content are loaded once.
type Loader struct {
	opts    Options
	storage common.StorageConfig
	log     *slog.Logger

	mu  sync.Mutex
	gcs *storage.Client
}

func NewLoader(opts Options, storageCfg common.StorageConfig, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.AllowedExts == nil {
		opts.AllowedExts = constants.AllowedExtensions
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	return &Loader{opts: opts, storage: storageCfg, log: logger}
}

// Close releases the storage client, if one was opened.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gcs == nil {
		return nil
	}
	err := l.gcs.Close()
	l.gcs = nil
	return err
}

type loadState struct {
	sources []textextract.Source
	skipped []Skipped
	seen    map[string]string
	stats   Stats
}

func (s *loadState) add(src textextract.Source, log *slog.Logger) {
	sum := sha256.Sum256(src.Data)
	key := hex.EncodeToString(sum[:])
	if first, dup := s.seen[key]; dup {
		s.stats.Duplicates++
		log.Info("source.duplicate", "location", src.Path, "same_as", first)
		return
	}
	s.seen[key] = src.Path
	s.sources = append(s.sources, src)
}

func (s *loadState) fail(location string, err error) {
	s.stats.Failed++
	s.skipped = append(s.skipped, Skipped{Location: location, Err: err.Error()})
}

// Load resolves every location in order. Per-file failures are reported in the skipped list;
// only a missing root location, a bad URI or ctx cancellation is an error.
func (l *Loader) Load(ctx context.Context, locations []string) ([]textextract.Source, []Skipped, Stats, error) {
	st := &loadState{seen: map[string]string{}}
	for _, loc := range locations {
		if err := ctx.Err(); err != nil {
			return nil, nil, st.stats, err
		}
		loc = strings.TrimSpace(loc)
		if loc == "" {
			continue
		}
		var err error
		if strings.HasPrefix(loc, "gs://") {
			err = l.loadGCS(ctx, loc, st)
		} else {
			err = l.loadLocal(ctx, loc, st)
		}
		if err != nil {
			return nil, nil, st.stats, err
		}
	}
	l.log.Info("source.loaded",
		"locations", len(locations),
		"documents", len(st.sources),
		"scanned", st.stats.Scanned,
		"matched", st.stats.Matched,
		"duplicates", st.stats.Duplicates,
		"failed", st.stats.Failed,
	)
	return st.sources, st.skipped, st.stats, nil
}

func (l *Loader) allowed(name string) bool {
	_, ok := l.opts.AllowedExts[constants.NormalizeExt(filepath.Ext(name))]
	return ok
}

func (l *Loader) loadLocal(ctx context.Context, root string, st *loadState) error {
	info, err := os.Stat(root)
	if err != nil {
		return common.NewAppError("SOURCE_ERROR", "stat "+root, err)
	}
	if !info.IsDir() {
		st.stats.Scanned++
		st.stats.Matched++
		src, err := l.readFile(root)
		if err != nil {
			st.fail(root, err)
			return nil
		}
		st.add(src, l.log)
		return nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		st.stats.Scanned++
		if walkErr != nil {
			st.fail(path, walkErr)
			return nil
		}
		if l.opts.SkipHidden && path != root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !l.allowed(path) {
			return nil
		}
		st.stats.Matched++

		src, err := l.readFile(path)
		if err != nil {
			st.fail(path, err)
			return nil
		}
		st.add(src, l.log)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk: %w", err)
	}
	return nil
}

func (l *Loader) readFile(path string) (textextract.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return textextract.Source{}, err
	}
	defer func() { _ = f.Close() }()
	data, err := readLimited(f, l.opts.MaxBytes)
	if err != nil {
		return textextract.Source{}, fmt.Errorf("%s: %w", path, err)
	}
	return textextract.Source{Name: filepath.Base(path), Path: path, Data: data}, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("document larger than %d bytes", limit)
	}
	return data, nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func (l *Loader) client(ctx context.Context) (*storage.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gcs != nil {
		return l.gcs, nil
	}
	var opts []option.ClientOption
	if l.storage.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(l.storage.CredentialsFile))
	}
	c, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	l.gcs = c
	return c, nil
}
