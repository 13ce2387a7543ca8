// Package attachments stores uploaded recipe images independently of the
// recipe collection. Files are never removed once saved.
package attachments

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// URLPrefix is the public path under which attachments are served.
const URLPrefix = "/uploads/"

var unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// Store persists and retrieves attachment content by generated name.
type Store interface {
	// Save writes r under a name derived from originalName and returns that name.
	Save(ctx context.Context, originalName string, r io.Reader, size int64) (string, error)
	// Open returns the stored content; a missing name yields apperr.ErrNotFound.
	Open(ctx context.Context, name string) (*File, error)
}

// File is an open attachment.
type File struct {
	io.ReadSeekCloser
	Name    string
	Size    int64
	ModTime time.Time
}

// URL returns the public path for a stored attachment name.
func URL(name string) string {
	return URLPrefix + name
}

// NewName builds "<unix-millis>-<original>" with the original reduced to a
// safe base name.
func NewName(now time.Time, original string) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), sanitize(original))
}

func sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeNameRe.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." || name == "/" {
		return "file"
	}
	return name
}

// ValidName reports whether name is a plain file name that cannot escape the
// attachment root.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return filepath.Base(name) == name
}

// DetectContentType sniffs the MIME type of f and rewinds it.
func DetectContentType(f io.ReadSeeker) (string, error) {
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("attachments: detect type: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("attachments: rewind: %w", err)
	}
	return mt.String(), nil
}
