package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Storage and upload drivers.
const (
	StorageDriverJSON   = "json"
	StorageDriverSQLite = "sqlite"

	UploadsDriverLocal = "local"
	UploadsDriverMinIO = "minio"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Storage StorageConfig     `yaml:"storage"`
	Uploads UploadsConfig     `yaml:"uploads"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Uploads.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port          int     `yaml:"port"`
	AllowedOrigin string  `yaml:"allowed_origin"`
	RateLimit     float64 `yaml:"rate_limit"`
	RateBurst     int     `yaml:"rate_burst"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.AllowedOrigin, is.URL),
		validation.Field(&c.RateLimit, validation.Min(0.0)),
		validation.Field(&c.RateBurst, validation.Min(0)),
	)
}

// StorageConfig selects where the recipe collection lives.
//
// The json driver keeps a single pretty-printed document at Path; when
// CreateIfMissing is set an empty collection is written on startup.
type StorageConfig struct {
	Driver          string `yaml:"driver"`
	Path            string `yaml:"path"`
	SQLitePath      string `yaml:"sqlite_path"`
	CreateIfMissing bool   `yaml:"create_if_missing"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(StorageDriverJSON, StorageDriverSQLite)),
		validation.Field(&c.Path, validation.When(c.Driver == StorageDriverJSON, validation.Required)),
		validation.Field(&c.SQLitePath, validation.When(c.Driver == StorageDriverSQLite, validation.Required)),
	)
}

// UploadsConfig selects where recipe images are kept.
type UploadsConfig struct {
	Driver   string      `yaml:"driver"`
	Dir      string      `yaml:"dir"`
	MaxBytes int64       `yaml:"max_bytes"`
	MinIO    MinIOConfig `yaml:"minio"`
}

// Validate validates the uploads configuration.
func (c *UploadsConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(UploadsDriverLocal, UploadsDriverMinIO)),
		validation.Field(&c.Dir, validation.When(c.Driver == UploadsDriverLocal, validation.Required)),
		validation.Field(&c.MaxBytes, validation.Min(int64(0))),
	); err != nil {
		return err
	}
	if c.Driver == UploadsDriverMinIO {
		return c.MinIO.Validate()
	}
	return nil
}

// MinIOConfig holds object storage credentials for the minio uploads driver.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
}

// Validate validates the MinIO configuration.
func (c *MinIOConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.Required),
		validation.Field(&c.AccessKey, validation.Required),
		validation.Field(&c.SecretKey, validation.Required),
		validation.Field(&c.Bucket, validation.Required),
	)
}

// AuthConfig holds the shared secret mutating requests must present.
type AuthConfig struct {
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("auth: token is empty")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 3000,
			},
		},
		Storage: StorageConfig{
			Driver:          StorageDriverJSON,
			Path:            "recipes.json",
			SQLitePath:      "recipes.db",
			CreateIfMissing: true,
		},
		Uploads: UploadsConfig{
			Driver:   UploadsDriverLocal,
			Dir:      "uploads",
			MaxBytes: 10 << 20,
		},
	}
}
