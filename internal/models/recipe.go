// Package models defines the domain types for recipebox.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Field names the store itself reads or assigns.
const (
	FieldID       = "id"
	FieldTitle    = "title"
	FieldImageURL = "imageUrl"
)

// CopySuffix is appended to the title of a duplicated recipe.
const CopySuffix = " (Copy)"

// Recipe is a loosely-typed record. Only id, title and imageUrl have meaning
// to the store; every other field is carried through untouched.
type Recipe map[string]any

// ParseRecipe decodes a single JSON object. Numbers keep their exact textual
// form so that re-encoding does not alter them.
func ParseRecipe(data []byte) (Recipe, error) {
	var r Recipe
	if err := decode(data, &r); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errors.New("recipe must be a JSON object")
	}
	return r, nil
}

// ParseCollection decodes a JSON array of recipes.
func ParseCollection(data []byte) ([]Recipe, error) {
	var out []Recipe
	if err := decode(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Recipe{}
	}
	return out, nil
}

// MarshalCollection renders the collection as a two-space indented JSON array.
// HTML characters are written literally.
func MarshalCollection(recipes []Recipe) ([]byte, error) {
	if recipes == nil {
		recipes = []Recipe{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recipes); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// ID returns the recipe key. Strings and numbers are accepted; anything else,
// including a missing id, yields "" which never matches a lookup.
func (r Recipe) ID() string {
	switch v := r[FieldID].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// HasID reports whether the recipe is keyed by id.
func (r Recipe) HasID(id string) bool {
	return id != "" && r.ID() == id
}

// SetImageURL points the recipe at an uploaded attachment.
func (r Recipe) SetImageURL(url string) {
	r[FieldImageURL] = url
}

// Duplicate returns a shallow copy carrying newID and a suffixed title.
func (r Recipe) Duplicate(newID string) Recipe {
	out := make(Recipe, len(r))
	for k, v := range r {
		out[k] = v
	}
	out[FieldID] = newID
	if title, ok := r[FieldTitle].(string); ok {
		out[FieldTitle] = title + CopySuffix
	} else {
		out[FieldTitle] = "(Copy)"
	}
	return out
}

// String implements fmt.Stringer for log attributes.
func (r Recipe) String() string {
	return fmt.Sprintf("recipe(%s)", r.ID())
}
