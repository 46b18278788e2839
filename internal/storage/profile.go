package storage

import (
	"github.com/peternagy/chromapal/internal/core"
	"github.com/peternagy/chromapal/internal/debug"
	"github.com/peternagy/chromapal/internal/types"
)

// ProfileService manages the active connection profile.
type ProfileService struct {
	state   *core.AppState
	storage *Service
}

// NewProfileService creates a new profile service.
func NewProfileService(state *core.AppState, storage *Service) *ProfileService {
	return &ProfileService{state: state, storage: storage}
}

// Load reads the saved profile into the app state. A saved profile that fails
// validation is replaced by the defaults.
func (s *ProfileService) Load() types.ConnectionProfile {
	profile, err := s.storage.LoadProfile()
	if err != nil {
		debug.LogConnection("Failed to load connection profile, using defaults", map[string]interface{}{
			"error": err.Error(),
		})
	}
	profile = NormalizeProfile(profile)
	if err := ValidateProfile(profile); err != nil {
		debug.LogConnection("Saved connection profile is invalid, using defaults", map[string]interface{}{
			"error": err.Error(),
		})
		profile = DefaultProfile()
	}
	s.state.SetProfile(profile)
	return profile
}

// Get returns the active profile.
func (s *ProfileService) Get() types.ConnectionProfile {
	return s.state.GetProfile()
}

// Save validates and persists a profile, then makes it active. On any error
// the previously active profile stays in place.
func (s *ProfileService) Save(profile types.ConnectionProfile) (types.ConnectionProfile, error) {
	profile = NormalizeProfile(profile)
	if err := ValidateProfile(profile); err != nil {
		return s.state.GetProfile(), err
	}
	if err := s.storage.PersistProfile(profile); err != nil {
		return s.state.GetProfile(), err
	}
	s.state.SetProfile(profile)
	debug.LogConnection("Saved connection profile", map[string]interface{}{
		"baseUrl": profile.BaseURL(),
	})
	return profile, nil
}
