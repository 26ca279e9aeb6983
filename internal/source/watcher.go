package source

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/docextract/constants"
)

type WatchConfig struct {
	Roots       []string            // directories to watch (recursive)
	AllowedExts map[string]struct{} // nil -> constants.AllowedExtensions
	InitialScan bool                // emit files already present as the first drop
	// Debounce coalesces bursts of create/write events into one drop. Zero means 2s.
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watch emits "drops": sorted, de-duplicated sets of document paths that settled for Debounce
// without further writes. Both channels close when ctx is done.
func Watch(ctx context.Context, cfg WatchConfig) (<-chan []string, <-chan error, error) {
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = constants.AllowedExtensions
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Error("source.watch.create_failed", "error", err)
		return nil, nil, err
	}

	pending := map[string]struct{}{}
	addDir := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path != root && isHidden(path) {
					return filepath.SkipDir
				}
				return w.Add(path)
			}
			if cfg.InitialScan && !isHidden(path) && allowedExt(path, cfg.AllowedExts) {
				pending[path] = struct{}{}
			}
			return nil
		})
	}
	for _, r := range cfg.Roots {
		if err := addDir(r); err != nil {
			log.Error("source.watch.add_root_failed", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}
	log.Info("source.watch.started", "roots", cfg.Roots, "debounce_ms", cfg.Debounce.Milliseconds())

	drops := make(chan []string, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(drops)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				log.Warn("source.watch.close_failed", "error", err)
			}
		}()

		timer := time.NewTimer(cfg.Debounce)
		if len(pending) == 0 {
			timer.Stop()
		}
		flush := func() {
			if len(pending) == 0 {
				return
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			select {
			case drops <- paths:
				log.Info("source.watch.drop", "files", len(paths))
			case <-ctx.Done():
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				flush()
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op&fsnotify.Create != 0 {
					if fi, err := os.Stat(e.Name); err == nil && fi.IsDir() && !isHidden(e.Name) {
						if err := addDir(e.Name); err != nil {
							log.Warn("source.watch.add_dir_failed", "path", e.Name, "error", err)
						}
						timer.Reset(cfg.Debounce)
						continue
					}
				}
				if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 ||
					isHidden(e.Name) || !allowedExt(e.Name, cfg.AllowedExts) {
					continue
				}
				pending[e.Name] = struct{}{}
				timer.Reset(cfg.Debounce)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error("source.watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return drops, errCh, nil
}

func allowedExt(path string, exts map[string]struct{}) bool {
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}
