package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/starford/recipebox/internal/apperr"
	"github.com/starford/recipebox/internal/models"
)

// JSONFile implements Provider on top of a single JSON document.
//
// Every call loads the whole document, applies one change and writes the whole
// document back. There is no lock between the load and the write, so two
// overlapping mutations can lose one of the updates.
type JSONFile struct {
	fs   afero.Fs
	path string
}

// NewJSONFile returns a store for the document at path on fs.
func NewJSONFile(fs afero.Fs, path string) *JSONFile {
	return &JSONFile{fs: fs, path: path}
}

// Path returns the document location.
func (j *JSONFile) Path() string {
	return j.path
}

// EnsureExists writes an empty collection when the document is absent.
func (j *JSONFile) EnsureExists() error {
	ok, err := afero.Exists(j.fs, j.path)
	if err != nil {
		return fmt.Errorf("storage: stat %s: %w", j.path, err)
	}
	if ok {
		return nil
	}
	return j.save(nil)
}

// List returns the collection as stored.
func (j *JSONFile) List(_ context.Context) ([]models.Recipe, error) {
	return j.load()
}

// Upsert replaces the first entry with r's id, keeping its position, or appends r.
func (j *JSONFile) Upsert(_ context.Context, r models.Recipe) (models.Recipe, error) {
	recipes, err := j.load()
	if err != nil {
		return nil, err
	}
	recipes = upsertInto(recipes, r)
	if err := j.save(recipes); err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteByID removes all entries keyed by id.
func (j *JSONFile) DeleteByID(_ context.Context, id string) error {
	recipes, err := j.load()
	if err != nil {
		return err
	}
	kept, removed := removeFrom(recipes, id)
	if removed == 0 {
		return fmt.Errorf("storage: delete %q: %w", id, apperr.ErrNotFound)
	}
	return j.save(kept)
}

// CopyByID appends a duplicate of the first entry keyed by id.
func (j *JSONFile) CopyByID(_ context.Context, id, newID string) (models.Recipe, error) {
	recipes, err := j.load()
	if err != nil {
		return nil, err
	}
	src := findIn(recipes, id)
	if src == nil {
		return nil, fmt.Errorf("storage: copy %q: %w", id, apperr.ErrNotFound)
	}
	dup := src.Duplicate(newID)
	if err := j.save(append(recipes, dup)); err != nil {
		return nil, err
	}
	return dup, nil
}

func (j *JSONFile) load() ([]models.Recipe, error) {
	data, err := afero.ReadFile(j.fs, j.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", apperr.ErrStorageRead, j.path, err)
	}
	recipes, err := models.ParseCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", apperr.ErrStorageRead, j.path, err)
	}
	return recipes, nil
}

// save writes the document atomically: tmp file, fsync, rename.
func (j *JSONFile) save(recipes []models.Recipe) error {
	data, err := models.MarshalCollection(recipes)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", apperr.ErrStorageWrite, err)
	}

	dir := filepath.Dir(j.path)
	if err := j.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir: %w", apperr.ErrStorageWrite, err)
	}

	tmp, err := afero.TempFile(j.fs, dir, ".recipes-tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp: %w", apperr.ErrStorageWrite, err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = j.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("%w: write temp: %w", apperr.ErrStorageWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: fsync: %w", apperr.ErrStorageWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp: %w", apperr.ErrStorageWrite, err)
	}
	if err := j.fs.Rename(tmpName, j.path); err != nil {
		return fmt.Errorf("%w: rename: %w", apperr.ErrStorageWrite, err)
	}
	success = true
	return nil
}

func upsertInto(recipes []models.Recipe, r models.Recipe) []models.Recipe {
	id := r.ID()
	for i := range recipes {
		if recipes[i].HasID(id) {
			recipes[i] = r
			return recipes
		}
	}
	return append(recipes, r)
}

func removeFrom(recipes []models.Recipe, id string) ([]models.Recipe, int) {
	kept := recipes[:0]
	for _, r := range recipes {
		if r.HasID(id) {
			continue
		}
		kept = append(kept, r)
	}
	return kept, len(recipes) - len(kept)
}

func findIn(recipes []models.Recipe, id string) models.Recipe {
	for _, r := range recipes {
		if r.HasID(id) {
			return r
		}
	}
	return nil
}

var _ Provider = (*JSONFile)(nil)
