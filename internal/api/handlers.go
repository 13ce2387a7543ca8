package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/recipebox/internal/apperr"
	"github.com/starford/recipebox/internal/attachments"
	"github.com/starford/recipebox/internal/models"
	"github.com/starford/recipebox/internal/recipeservice"
)

const (
	maxRefBodyBytes = 1 << 20
	multipartMemory = 8 << 20
	formAccessToken = "accessToken"
	formRecipe      = "recipe"
	formImage       = "image"
)

// Handler holds API route handlers.
type Handler struct {
	svc            *recipeservice.Service
	maxUploadBytes int64
}

// NewHandler creates a new Handler. maxUploadBytes caps multipart bodies.
func NewHandler(svc *recipeservice.Service, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// ListRecipes handles GET /recipes.
func (h *Handler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipes)
}

// UpsertRecipe handles POST /recipes (multipart: accessToken, recipe, optional image).
func (h *Handler) UpsertRecipe(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody(msgTooLarge))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody(msgInvalidRecipe))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var image *recipeservice.Upload
	file, header, err := r.FormFile(formImage)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// Image is optional.
	case err != nil:
		writeJSON(w, http.StatusBadRequest, errorBody(msgInvalidRecipe))
		return
	default:
		defer file.Close()
		image = &recipeservice.Upload{Filename: header.Filename, Size: header.Size, Content: file}
	}

	recipe, err := h.svc.Upsert(r.Context(), r.FormValue(formAccessToken), []byte(r.FormValue(formRecipe)), image)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// DeleteRecipe handles POST /recipes/delete.
func (h *Handler) DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRef(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), req.AccessToken, refID(req)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msgDeleted})
}

// CopyRecipe handles POST /recipes/copy.
func (h *Handler) CopyRecipe(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRef(w, r)
	if !ok {
		return
	}
	dup, err := h.svc.Copy(r.Context(), req.AccessToken, refID(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dup)
}

// ServeUpload handles GET /uploads/{filename}.
func (h *Handler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	f, err := h.svc.OpenAttachment(r.Context(), name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody(msgFileNotFound))
			return
		}
		writeError(w, r, err)
		return
	}
	defer f.Close()

	ct, err := attachments.DetectContentType(f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, f.Name, f.ModTime, f)
}

func decodeRef(w http.ResponseWriter, r *http.Request) (RecipeRefRequest, bool) {
	var req RecipeRefRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRefBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(msgInvalidRequest))
		return req, false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		slog.Debug("invalid reference body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorBody(msgInvalidRequest))
		return req, false
	}
	return req, true
}

// refID normalises the loosely-typed id the same way stored recipes are keyed.
func refID(req RecipeRefRequest) string {
	return models.Recipe{models.FieldID: req.ID}.ID()
}
