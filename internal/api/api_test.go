package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/recipebox/internal/auth"
	"github.com/starford/recipebox/internal/recipeservice"
	"github.com/starford/recipebox/internal/testutil"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func setupRouter(t *testing.T, cfg RouterConfig) (chi.Router, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t)
	svc := recipeservice.NewService(env.Store, env.Files, auth.NewStaticToken(testutil.Token),
		recipeservice.WithIDGenerator(func() (string, error) { return "copy-1", nil }))
	return NewRouter(svc, cfg), env
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func upsertRequest(t *testing.T, token, recipe string, image []byte, filename string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField(formAccessToken, token))
	require.NoError(t, mw.WriteField(formRecipe, recipe))
	if image != nil {
		part, err := mw.CreateFormFile(formImage, filename)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/recipes", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func refRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestListRecipes(t *testing.T) {
	r, env := setupRouter(t, RouterConfig{})
	env.Seed(t, `[{"id":"1","title":"Soup"},{"id":2,"title":"Bread"}]`)

	w := do(r, httptest.NewRequest(http.MethodGet, "/recipes", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var got []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Soup", got[0]["title"])
	assert.Equal(t, float64(2), got[1]["id"])
}

func TestListRecipes_CorruptDocument(t *testing.T) {
	r, env := setupRouter(t, RouterConfig{})
	env.Seed(t, `not json`)

	w := do(r, httptest.NewRequest(http.MethodGet, "/recipes", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, msgReadFailed, decodeBody(t, w)["error"])
}

func TestUpsertRecipe_CreatesAndReplaces(t *testing.T) {
	r, _ := setupRouter(t, RouterConfig{})

	w := do(r, upsertRequest(t, testutil.Token, `{"id":"1","title":"Soup"}`, nil, ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"id": "1", "title": "Soup"}, decodeBody(t, w))

	w = do(r, upsertRequest(t, testutil.Token, `{"id":"1","title":"Stew"}`, nil, ""))
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, httptest.NewRequest(http.MethodGet, "/recipes", nil))
	var got []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Stew", got[0]["title"])
}

func TestUpsertRecipe_WithImage(t *testing.T) {
	r, _ := setupRouter(t, RouterConfig{})

	w := do(r, upsertRequest(t, testutil.Token, `{"id":"1","title":"Soup"}`, pngHeader, "my soup.png"))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "/uploads/1700000000000-my_soup.png", body["imageUrl"])

	w = do(r, httptest.NewRequest(http.MethodGet, "/uploads/1700000000000-my_soup.png", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, pngHeader, w.Body.Bytes())
}

func TestUpsertRecipe_ImageNameWithDoubleDotIsServed(t *testing.T) {
	r, _ := setupRouter(t, RouterConfig{})

	w := do(r, upsertRequest(t, testutil.Token, `{"id":"1"}`, pngHeader, "my..photo.png"))
	require.Equal(t, http.StatusOK, w.Code)
	url, _ := decodeBody(t, w)["imageUrl"].(string)
	assert.Equal(t, "/uploads/1700000000000-my..photo.png", url)

	w = do(r, httptest.NewRequest(http.MethodGet, url, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pngHeader, w.Body.Bytes())
}

func TestUpsertRecipe_HTMLCharactersNotEscaped(t *testing.T) {
	r, env := setupRouter(t, RouterConfig{})

	w := do(r, upsertRequest(t, testutil.Token, `{"id":"1","title":"Mac & Cheese"}`, nil, ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Mac & Cheese"`)
	assert.Contains(t, string(env.Document(t)), `"Mac & Cheese"`)
}

func TestUpsertRecipe_BadToken(t *testing.T) {
	r, env := setupRouter(t, RouterConfig{})
	env.Seed(t, `[{"id":"1","title":"Soup"}]`)
	before := env.Document(t)

	w := do(r, upsertRequest(t, "wrong", `{"id":"1","title":"Hacked"}`, pngHeader, "x.png"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, msgUnauthorized, decodeBody(t, w)["error"])
	assert.Equal(t, before, env.Document(t))
}

func TestUpsertRecipe_InvalidRecipe(t *testing.T) {
	r, _ := setupRouter(t, RouterConfig{})

	for _, raw := range []string{`{broken`, `[1,2]`, ``} {
		w := do(r, upsertRequest(t, testutil.Token, raw, nil, ""))
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
		assert.Equal(t, msgInvalidRecipe, decodeBody(t, w)["error"])
	}
}

func TestUpsertRecipe_NotMultipart(t *testing.T) {
	r, _ := setupRouter(t, RouterConfig{})

	w := do(r, refRequest("/recipes", `{"id":"1"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpsertRecipe_TooLarge(t *testing.T) {
	r, _ := setupRouter(t, RouterConfig{MaxUploadBytes: 256})

	w := do(r, upsertRequest(t, testutil.Token, `{"id":"1"}`, bytes.Repeat([]byte{'a'}, 1024), "big.txt"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestDeleteRecipe(t *testing.T) {
	r, env := setupRouter(t, RouterConfig{})
	env.Seed(t, `[{"id":"1","title":"Soup"},{"id":"2","title":"Bread"},{"id":"1","title":"Soup again"}]`)

	w := do(r, refRequest("/recipes/delete", `{"id":"1","accessToken":"test-token"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, msgDeleted, decodeBody(t, w)["message"])

	w = do(r, httptest.NewRequest(http.MethodGet, "/recipes", nil))
	var got []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0]["id"])
}

func TestDeleteRecipe_NumericID(t *testing.T) {
	r, env := setupRouter(t, RouterConfig{})
	env.Seed(t, `[{"id":7,"title":"Soup"}]`)

	w := do(r, refRequest("/recipes/delete", `{"id":7,"accessToken":"test-token"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", string(env.Document(t)))
}

func TestDeleteRecipe_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"bad token", `{"id":"1","accessToken":"nope"}`, http.StatusForbidden, msgUnauthorized},
		{"missing id", `{"id":"404","accessToken":"test-token"}`, http.StatusNotFound, msgNotFound},
		{"no id", `{"accessToken":"test-token"}`, http.StatusNotFound, msgNotFound},
		{"malformed body", `{"id":`, http.StatusBadRequest, msgInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, env := setupRouter(t, RouterConfig{})
			env.Seed(t, `[{"id":"1","title":"Soup"}]`)
			before := env.Document(t)

			w := do(r, refRequest("/recipes/delete", tt.body))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.msg, decodeBody(t, w)["error"])
			assert.Equal(t, before, env.Document(t))
		})
	}
}

func TestCopyRecipe(t *testing.T) {
	r, env := setupRouter(t, RouterConfig{})
	env.Seed(t, `[{"id":"1","title":"Soup","servings":4}]`)

	w := do(r, refRequest("/recipes/copy", `{"id":"1","accessToken":"test-token"}`))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "copy-1", body["id"])
	assert.Equal(t, "Soup (Copy)", body["title"])
	assert.Equal(t, float64(4), body["servings"])

	w = do(r, httptest.NewRequest(http.MethodGet, "/recipes", nil))
	var got []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Soup", got[0]["title"])
	assert.Equal(t, "copy-1", got[1]["id"])
}

func TestCopyRecipe_Errors(t *testing.T) {
	r, env := setupRouter(t, RouterConfig{})
	env.Seed(t, `[{"id":"1","title":"Soup"}]`)

	w := do(r, refRequest("/recipes/copy", `{"id":"1","accessToken":""}`))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, refRequest("/recipes/copy", `{"id":"2","accessToken":"test-token"}`))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, msgNotFound, decodeBody(t, w)["error"])
}

func TestServeUpload_NotFound(t *testing.T) {
	r, _ := setupRouter(t, RouterConfig{})

	for _, path := range []string{"/uploads/missing.png", "/uploads/..%2Frecipes.json"} {
		w := do(r, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestCORS(t *testing.T) {
	r, _ := setupRouter(t, RouterConfig{AllowedOrigin: "http://localhost:5173"})

	req := httptest.NewRequest(http.MethodOptions, "/recipes", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := do(r, req)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/recipes", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	r, _ := setupRouter(t, RouterConfig{RateLimit: 0.001, RateBurst: 1})

	w := do(r, upsertRequest(t, testutil.Token, `{"id":"1"}`, nil, ""))
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, upsertRequest(t, testutil.Token, `{"id":"2"}`, nil, ""))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// Reads are never limited.
	w = do(r, httptest.NewRequest(http.MethodGet, "/recipes", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := setupRouter(t, RouterConfig{})
	do(r, httptest.NewRequest(http.MethodGet, "/recipes", nil))

	w := do(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "recipebox_http_requests_total")
}
