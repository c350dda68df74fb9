// Package auth guards write endpoints with a bcrypt-hashed bearer token.
package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// APIActor is the actor recorded for requests authenticated with the API token.
const APIActor = "api-token"

// Service wraps authentication business rules.
type Service struct {
	hash []byte
}

// NewService constructs a new Service. An empty hash disables authentication.
func NewService(tokenHash string) *Service {
	return &Service{hash: []byte(strings.TrimSpace(tokenHash))}
}

// Enabled reports whether a token is required.
func (s *Service) Enabled() bool {
	return s != nil && len(s.hash) > 0
}

// Authenticate checks a presented bearer token.
func (s *Service) Authenticate(token string) error {
	if !s.Enabled() {
		return nil
	}
	if token == "" {
		return shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.hash, []byte(token)); err != nil {
		return shared.ErrInvalidCredentials
	}
	return nil
}

// HashToken produces the value to configure as API_TOKEN_HASH.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
