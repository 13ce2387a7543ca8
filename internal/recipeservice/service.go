// Package recipeservice implements the recipe operations on top of an
// injectable store, attachment store and credential check.
package recipeservice

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/recipebox/internal/apperr"
	"github.com/starford/recipebox/internal/attachments"
	"github.com/starford/recipebox/internal/auth"
	"github.com/starford/recipebox/internal/models"
	"github.com/starford/recipebox/internal/sse"
	"github.com/starford/recipebox/internal/storage"
)

// Upload is an image accompanying an upsert.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// Publisher receives a notification after each successful mutation.
type Publisher interface {
	PublishRecipeEvent(kind, id string)
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the change-event sink.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithIDGenerator overrides how ids for copied recipes are minted.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(s *Service) { s.newID = fn }
}

// Service coordinates the store, attachments and access check.
type Service struct {
	store  storage.Provider
	files  attachments.Store
	auth   auth.Checker
	events Publisher
	newID  func() (string, error)
}

// NewService creates a recipe service.
func NewService(store storage.Provider, files attachments.Store, checker auth.Checker, opts ...Option) *Service {
	s := &Service{
		store: store,
		files: files,
		auth:  checker,
		newID: timeOrderedID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timeOrderedID returns a UUIDv7, which embeds the current time in
// milliseconds and is unique within the process.
func timeOrderedID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// List returns the whole collection.
func (s *Service) List(ctx context.Context) ([]models.Recipe, error) {
	return s.store.List(ctx)
}

// Upsert stores payload (a JSON object), replacing any recipe with the same
// id. When image is non-nil it is saved first and referenced via imageUrl.
func (s *Service) Upsert(ctx context.Context, token string, payload []byte, image *Upload) (models.Recipe, error) {
	if err := s.auth.Check(token); err != nil {
		return nil, err
	}
	recipe, err := models.ParseRecipe(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidPayload, err)
	}

	if image != nil {
		name, err := s.files.Save(ctx, image.Filename, image.Content, image.Size)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperr.ErrStorageWrite, err)
		}
		recipe.SetImageURL(attachments.URL(name))
		slog.Debug("attachment saved", slog.String("name", name), slog.String("recipe", recipe.ID()))
	}

	saved, err := s.store.Upsert(ctx, recipe)
	if err != nil {
		return nil, err
	}
	s.publish(sse.KindRecipeUpserted, saved.ID())
	return saved, nil
}

// Delete removes every recipe keyed by id.
func (s *Service) Delete(ctx context.Context, token, id string) error {
	if err := s.auth.Check(token); err != nil {
		return err
	}
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.publish(sse.KindRecipeDeleted, id)
	return nil
}

// Copy appends a duplicate of the recipe keyed by id under a fresh id.
func (s *Service) Copy(ctx context.Context, token, id string) (models.Recipe, error) {
	if err := s.auth.Check(token); err != nil {
		return nil, err
	}
	newID, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("recipeservice: new id: %w", err)
	}
	dup, err := s.store.CopyByID(ctx, id, newID)
	if err != nil {
		return nil, err
	}
	s.publish(sse.KindRecipeCopied, dup.ID())
	return dup, nil
}

// OpenAttachment returns a stored upload by generated name.
func (s *Service) OpenAttachment(ctx context.Context, name string) (*attachments.File, error) {
	return s.files.Open(ctx, name)
}

func (s *Service) publish(kind, id string) {
	if s.events != nil {
		s.events.PublishRecipeEvent(kind, id)
	}
}
