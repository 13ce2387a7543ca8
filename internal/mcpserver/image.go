package mcpserver

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/starford/recipebox/internal/recipeservice"
)

const maxImageSize = 10 << 20 // 10 MB

var mimeToExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// imageUpload decodes a data URI into an Upload, checking that the bytes
// really are the declared image type.
func imageUpload(uri, filename string) (*recipeservice.Upload, error) {
	data, declared, err := decodeDataURI(uri)
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageSize {
		return nil, fmt.Errorf("image too large: %d bytes (max %d)", len(data), maxImageSize)
	}
	if detected := mimetype.Detect(data); !detected.Is(declared) {
		return nil, fmt.Errorf("image content does not match %s (detected: %s)", declared, detected.String())
	}
	if filename == "" {
		filename = "image" + mimeToExt[declared]
	}
	return &recipeservice.Upload{
		Filename: filename,
		Size:     int64(len(data)),
		Content:  bytes.NewReader(data),
	}, nil
}

// decodeDataURI parses a data:<mediatype>;base64,<data> URI and returns the
// payload and its media type.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", fmt.Errorf("image must be a data URI")
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	if _, ok := mimeToExt[mime]; !ok {
		return nil, "", fmt.Errorf("unsupported MIME type in data URI: %s", mime)
	}
	return data, mime, nil
}
