// Package credential stores Chroma auth tokens in the OS keyring.
package credential

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const keyringService = "chromapal"

// Service handles token storage in the OS keyring. Tokens are keyed by the
// server's base URL so each server keeps its own token.
type Service struct{}

// NewService creates a new credential service.
func NewService() *Service {
	return &Service{}
}

// SetToken stores a token in the OS keyring. An empty token deletes it.
func (s *Service) SetToken(baseURL, token string) error {
	if token == "" {
		return s.DeleteToken(baseURL)
	}
	return keyring.Set(keyringService, baseURL, token)
}

// GetToken retrieves a token from the OS keyring. A missing token is not an error.
func (s *Service) GetToken(baseURL string) (string, error) {
	token, err := keyring.Get(keyringService, baseURL)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return token, err
}

// HasToken reports whether a token is stored for baseURL.
func (s *Service) HasToken(baseURL string) bool {
	token, err := s.GetToken(baseURL)
	return err == nil && token != ""
}

// DeleteToken removes a token from the OS keyring.
func (s *Service) DeleteToken(baseURL string) error {
	err := keyring.Delete(keyringService, baseURL)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
