// Package core provides shared application state and event handling.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/peternagy/chromapal/internal/chroma"
	"github.com/peternagy/chromapal/internal/types"
)

// DefaultQueryTimeout bounds metadata calls (collection list, count).
// Page fetches are not bounded by a timeout; they are cancelled by the fetch tracker.
const DefaultQueryTimeout = 30 * time.Second

// DefaultConnectTimeout is used when a profile carries no timeout of its own.
const DefaultConnectTimeout = 5 * time.Second

// AppState holds the shared application state.
type AppState struct {
	Profile       types.ConnectionProfile // Active connection profile
	Client        *chroma.Client          // Active Chroma client, nil when disconnected
	Collections   []types.CollectionRef   // Collections listed on the active connection
	LastError     string                  // Last connectivity error, cleared on success
	ConfigDir     string                  // Config directory path
	Mu            sync.RWMutex
	Ctx           context.Context // Wails context
	DisableEvents bool            // Disable event emission (for tests)
	Emitter       EventEmitter    // Event emitter for UI notifications
}

// NewAppState creates a new AppState with an empty collection list.
func NewAppState() *AppState {
	return &AppState{
		Collections: []types.CollectionRef{},
	}
}

// GetClient returns the Chroma client, or error if not connected.
func (s *AppState) GetClient() (*chroma.Client, error) {
	s.Mu.RLock()
	defer s.Mu.RUnlock()
	if s.Client == nil {
		return nil, &NotConnectedError{BaseURL: s.Profile.BaseURL()}
	}
	return s.Client, nil
}

// SetClient stores the active client and clears the last connectivity error.
func (s *AppState) SetClient(client *chroma.Client) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.Client = client
	s.LastError = ""
}

// RemoveClient drops the active client and the collection list.
func (s *AppState) RemoveClient() {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.Client != nil {
		s.Client.CloseIdleConnections()
	}
	s.Client = nil
	s.Collections = []types.CollectionRef{}
}

// HasClient checks if a client is connected.
func (s *AppState) HasClient() bool {
	s.Mu.RLock()
	defer s.Mu.RUnlock()
	return s.Client != nil
}

// GetProfile returns a copy of the active profile.
func (s *AppState) GetProfile() types.ConnectionProfile {
	s.Mu.RLock()
	defer s.Mu.RUnlock()
	return s.Profile
}

// SetProfile replaces the active profile wholesale.
func (s *AppState) SetProfile(p types.ConnectionProfile) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.Profile = p
}

// SetLastError records a connectivity error for the status indicator.
func (s *AppState) SetLastError(msg string) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.LastError = msg
}

// GetLastError returns the last connectivity error.
func (s *AppState) GetLastError() string {
	s.Mu.RLock()
	defer s.Mu.RUnlock()
	return s.LastError
}

// SetCollections replaces the cached collection list.
func (s *AppState) SetCollections(cols []types.CollectionRef) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.Collections = append([]types.CollectionRef(nil), cols...)
}

// GetCollections returns a copy of the cached collection list.
func (s *AppState) GetCollections() []types.CollectionRef {
	s.Mu.RLock()
	defer s.Mu.RUnlock()
	return append([]types.CollectionRef(nil), s.Collections...)
}

// FindCollection looks up a listed collection by id.
func (s *AppState) FindCollection(id string) (types.CollectionRef, error) {
	s.Mu.RLock()
	defer s.Mu.RUnlock()
	for _, c := range s.Collections {
		if c.ID == id {
			return c, nil
		}
	}
	return types.CollectionRef{}, &CollectionNotFoundError{CollectionID: id}
}

// ContextWithTimeout creates a context with the default query timeout.
func ContextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), DefaultQueryTimeout)
}

// ContextWithConnectTimeout creates a context bounded by the profile's
// connection-test timeout, falling back to DefaultConnectTimeout when unset.
func ContextWithConnectTimeout(timeoutMs int) (context.Context, context.CancelFunc) {
	d := DefaultConnectTimeout
	if timeoutMs > 0 {
		d = time.Duration(timeoutMs) * time.Millisecond
	}
	return context.WithTimeout(context.Background(), d)
}

// EmitEvent safely emits an event through the emitter.
func (s *AppState) EmitEvent(eventName string, data interface{}) {
	if s.DisableEvents || s.Emitter == nil {
		return
	}
	s.Emitter.Emit(eventName, data)
}
