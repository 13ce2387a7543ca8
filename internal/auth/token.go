// Package auth provides the credential check applied to mutating operations.
package auth

import (
	"crypto/subtle"

	"github.com/starford/recipebox/internal/apperr"
)

// Checker validates a caller-supplied credential.
type Checker interface {
	Check(token string) error
}

// StaticToken accepts exactly one shared secret.
type StaticToken struct {
	secret []byte
}

// NewStaticToken returns a Checker for secret. An empty secret rejects everything.
func NewStaticToken(secret string) *StaticToken {
	return &StaticToken{secret: []byte(secret)}
}

// Check returns apperr.ErrUnauthorized unless token equals the secret.
func (s *StaticToken) Check(token string) error {
	if len(s.secret) == 0 {
		return apperr.ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(token), s.secret) != 1 {
		return apperr.ErrUnauthorized
	}
	return nil
}

var _ Checker = (*StaticToken)(nil)
