// Package config provides YAML-based configuration loading with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// Load loads configuration from a YAML file with environment variable expansion,
// then validates target if it implements Validator.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	if err := decode(filename, data, target); err != nil {
		return err
	}
	return validate(target)
}

// LoadOptional is Load, except that a missing file leaves target untouched.
// Callers pre-fill target with defaults. Overrides run after the file is
// applied and before validation.
func LoadOptional[T any](filename string, target *T, overrides ...func(*T)) error {
	data, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	default:
		if err := decode(filename, data, target); err != nil {
			return err
		}
	}
	for _, override := range overrides {
		override(target)
	}
	return validate(target)
}

func decode[T any](filename string, data []byte, target *T) error {
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return nil
}

func validate[T any](target *T) error {
	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}
