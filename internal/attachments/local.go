package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/starford/recipebox/internal/apperr"
)

// Local stores attachments as flat files under a root directory.
type Local struct {
	fs  afero.Fs
	now func() time.Time
}

// NewLocal returns a store rooted at dir on fs. The directory is created if
// missing.
func NewLocal(fs afero.Fs, dir string) (*Local, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("attachments: create %s: %w", dir, err)
	}
	return &Local{fs: afero.NewBasePathFs(fs, dir), now: time.Now}, nil
}

// WithClock overrides the time source used for generated names.
func (l *Local) WithClock(now func() time.Time) *Local {
	l.now = now
	return l
}

// Save copies r into a newly named file.
func (l *Local) Save(_ context.Context, originalName string, r io.Reader, _ int64) (string, error) {
	name := NewName(l.now(), originalName)
	dst, err := l.fs.Create(name)
	if err != nil {
		return "", fmt.Errorf("attachments: create %s: %w", name, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		return "", fmt.Errorf("attachments: write %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("attachments: close %s: %w", name, err)
	}
	return name, nil
}

// Open returns the file stored under name.
func (l *Local) Open(_ context.Context, name string) (*File, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("attachments: invalid name %q: %w", name, apperr.ErrNotFound)
	}
	f, err := l.fs.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("attachments: %s: %w", name, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("attachments: open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("attachments: stat %s: %w", name, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("attachments: %s is a directory: %w", name, apperr.ErrNotFound)
	}
	return &File{ReadSeekCloser: f, Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

var _ Store = (*Local)(nil)
