// Package storage handles configuration file I/O operations.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/peternagy/chromapal/internal/types"
)

// Service handles configuration file persistence.
type Service struct {
	configDir string
}

// NewService creates a new storage service.
func NewService(configDir string) *Service {
	return &Service{configDir: configDir}
}

// InitConfigDir sets up the config directory.
func InitConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = os.Getenv("HOME")
	}
	dir := filepath.Join(configDir, "chromapal")
	os.MkdirAll(dir, 0755)
	return dir
}

// ProfileFile returns the path to the connection profile file.
func (s *Service) ProfileFile() string {
	return filepath.Join(s.configDir, "connection.json")
}

// DefaultProfile is the profile used before anything is saved.
func DefaultProfile() types.ConnectionProfile {
	return types.ConnectionProfile{
		Protocol:  "http",
		Host:      "localhost",
		Port:      8003,
		BasePath:  "",
		TimeoutMs: 5000,
	}
}

// LoadProfile loads the saved profile merged over the defaults. Fields absent
// from the file keep their default values. A missing file yields the defaults;
// an unreadable one yields the defaults and an error.
func (s *Service) LoadProfile() (types.ConnectionProfile, error) {
	profile := DefaultProfile()
	data, err := os.ReadFile(s.ProfileFile())
	if err != nil {
		if os.IsNotExist(err) {
			return profile, nil
		}
		return profile, err
	}
	if err := json.Unmarshal(data, &profile); err != nil {
		return DefaultProfile(), fmt.Errorf("failed to parse %s: %w", filepath.Base(s.ProfileFile()), err)
	}
	return profile, nil
}

// PersistProfile saves the profile to disk.
func (s *Service) PersistProfile(profile types.ConnectionProfile) error {
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.configDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(s.ProfileFile(), data, 0644)
}
