package attachments

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/starford/recipebox/internal/apperr"
)

// MinIOConfig describes an S3-compatible bucket.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// MinIO stores attachments as objects in a single bucket.
type MinIO struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

// NewMinIO connects to the endpoint and creates the bucket if it is missing.
func NewMinIO(ctx context.Context, cfg MinIOConfig) (*MinIO, error) {
	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("attachments: minio endpoint: %w", err)
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("attachments: minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("attachments: bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("attachments: make bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinIO{client: client, bucket: cfg.Bucket, now: time.Now}, nil
}

// Save uploads r as a new object. size may be -1 when unknown.
func (m *MinIO) Save(ctx context.Context, originalName string, r io.Reader, size int64) (string, error) {
	name := NewName(m.now(), originalName)
	if _, err := m.client.PutObject(ctx, m.bucket, name, r, size, minio.PutObjectOptions{}); err != nil {
		return "", fmt.Errorf("attachments: put %s: %w", name, err)
	}
	return name, nil
}

// Open fetches the object stored under name.
func (m *MinIO) Open(ctx context.Context, name string) (*File, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("attachments: invalid name %q: %w", name, apperr.ErrNotFound)
	}
	obj, err := m.client.GetObject(ctx, m.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("attachments: get %s: %w", name, err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("attachments: %s: %w", name, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("attachments: stat %s: %w", name, err)
	}
	return &File{ReadSeekCloser: obj, Name: name, Size: info.Size, ModTime: info.LastModified}, nil
}

// normaliseEndpoint accepts "host:port" or an http(s) URL and reports
// whether TLS should be used.
func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}
	return raw, false, nil
}

var _ Store = (*MinIO)(nil)
