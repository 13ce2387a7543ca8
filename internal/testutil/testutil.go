// Package testutil provides shared test helpers for wiring in-memory stores.
package testutil

import (
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/starford/recipebox/internal/attachments"
	"github.com/starford/recipebox/internal/storage"
)

// Token is the shared secret test environments are configured with.
const Token = "test-token"

// DocPath and UploadDir are where Env keeps its state on the in-memory fs.
const (
	DocPath   = "/data/recipes.json"
	UploadDir = "/data/uploads"
)

// Env is an in-memory recipe document plus attachment directory.
type Env struct {
	FS    afero.Fs
	Store *storage.JSONFile
	Files *attachments.Local
}

// NewEnv creates an empty collection and upload dir on a fresh MemMapFs.
// Generated attachment names use a fixed clock.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	fs := afero.NewMemMapFs()
	store := storage.NewJSONFile(fs, DocPath)
	if err := store.EnsureExists(); err != nil {
		t.Fatal(err)
	}
	files, err := attachments.NewLocal(fs, UploadDir)
	if err != nil {
		t.Fatal(err)
	}
	files.WithClock(func() time.Time { return time.UnixMilli(1700000000000) })
	return &Env{FS: fs, Store: store, Files: files}
}

// Document returns the raw bytes of the recipe document.
func (e *Env) Document(t *testing.T) []byte {
	t.Helper()
	data, err := afero.ReadFile(e.FS, DocPath)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// Seed overwrites the recipe document with raw JSON.
func (e *Env) Seed(t *testing.T, raw string) {
	t.Helper()
	if err := afero.WriteFile(e.FS, DocPath, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
}
