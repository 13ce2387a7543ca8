package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/recipebox/internal/apperr"
)

// Client-facing error messages.
const (
	msgUnauthorized   = "Unauthorized."
	msgInvalidRecipe  = "Invalid recipe data."
	msgInvalidRequest = "Invalid request body."
	msgNotFound       = "Recipe not found."
	msgFileNotFound   = "File not found."
	msgReadFailed     = "Error reading recipes."
	msgWriteFailed    = "Error saving recipe."
	msgInternal       = "Internal server error."
	msgRateLimited    = "Too many requests."
	msgTooLarge       = "Upload too large."
	msgDeleted        = "Recipe deleted successfully."
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps the apperr taxonomy onto a status code and fixed message.
// Storage and unexpected failures are logged with their cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, errorBody(msgUnauthorized))
	case errors.Is(err, apperr.ErrInvalidPayload):
		writeJSON(w, http.StatusBadRequest, errorBody(msgInvalidRecipe))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(msgNotFound))
	case errors.Is(err, apperr.ErrStorageRead):
		logFailure(r, err)
		writeJSON(w, http.StatusInternalServerError, errorBody(msgReadFailed))
	case errors.Is(err, apperr.ErrStorageWrite):
		logFailure(r, err)
		writeJSON(w, http.StatusInternalServerError, errorBody(msgWriteFailed))
	default:
		logFailure(r, err)
		writeJSON(w, http.StatusInternalServerError, errorBody(msgInternal))
	}
}

func logFailure(r *http.Request, err error) {
	slog.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
}
