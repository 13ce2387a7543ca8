// Package watch notices changes to the recipe document made by any process.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events a tmp-file rename produces.
const DefaultDebounce = 200 * time.Millisecond

// Document watches a single file. The parent directory is watched rather than
// the file itself because atomic writes replace the inode.
type Document struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	onChange func()

	last string
}

// NewDocument returns a watcher for path that calls onChange whenever the
// file content differs from the last observed content.
func NewDocument(path string, logger *slog.Logger, onChange func()) *Document {
	return &Document{
		path:     filepath.Clean(path),
		debounce: DefaultDebounce,
		logger:   logger,
		onChange: onChange,
	}
}

// Run blocks until ctx is cancelled.
func (d *Document) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: new watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(d.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", dir, err)
	}
	d.last = d.sum()

	d.logger.Info("watch: started", slog.String("path", d.path))

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			d.logger.Info("watch: stopped")
			return nil

		case <-fire:
			fire = nil
			d.check()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != d.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(d.debounce)
			} else {
				timer.Reset(d.debounce)
			}
			fire = timer.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			d.logger.Error("watch: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (d *Document) check() {
	cs := d.sum()
	if cs == d.last {
		return
	}
	d.last = cs
	d.logger.Debug("watch: document changed", slog.String("path", d.path), slog.String("checksum", cs))
	if d.onChange != nil {
		d.onChange()
	}
}

// sum returns the hex SHA-256 of the document, or "" when it cannot be read.
func (d *Document) sum() string {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
