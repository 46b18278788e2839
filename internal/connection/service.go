// Package connection handles Chroma connection operations.
package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/peternagy/chromapal/internal/chroma"
	"github.com/peternagy/chromapal/internal/core"
	"github.com/peternagy/chromapal/internal/credential"
	"github.com/peternagy/chromapal/internal/debug"
	"github.com/peternagy/chromapal/internal/storage"
	"github.com/peternagy/chromapal/internal/types"
)

// Service handles Chroma connection operations.
type Service struct {
	state       *core.AppState
	credentials *credential.Service
	clientOpts  []chroma.Option
}

// NewService creates a new connection service. clientOpts are applied to
// every client it creates.
func NewService(state *core.AppState, credentials *credential.Service, clientOpts ...chroma.Option) *Service {
	return &Service{
		state:       state,
		credentials: credentials,
		clientOpts:  clientOpts,
	}
}

func (s *Service) newClient(profile types.ConnectionProfile) *chroma.Client {
	opts := append([]chroma.Option(nil), s.clientOpts...)
	if s.credentials != nil {
		if token, err := s.credentials.GetToken(profile.BaseURL()); err == nil && token != "" {
			opts = append(opts, chroma.WithToken(token))
		}
	}
	return chroma.New(profile.BaseURL(), opts...)
}

// Connect connects to the active profile's server and lists its collections.
func (s *Service) Connect() ([]types.CollectionRef, error) {
	profile := s.state.GetProfile()
	if err := storage.ValidateProfile(profile); err != nil {
		return nil, err
	}

	client := s.newClient(profile)

	ctx, cancel := core.ContextWithConnectTimeout(profile.TimeoutMs)
	defer cancel()
	if err := client.Heartbeat(ctx); err != nil {
		s.state.SetLastError(err.Error())
		debug.LogConnection("Heartbeat failed", map[string]interface{}{
			"baseUrl": profile.BaseURL(),
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	listCtx, listCancel := core.ContextWithTimeout()
	defer listCancel()
	cols, err := client.ListCollections(listCtx)
	if err != nil {
		s.state.SetLastError(err.Error())
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	s.state.RemoveClient()
	s.state.SetClient(client)
	s.state.SetCollections(cols)

	debug.LogConnection("Connected", map[string]interface{}{
		"baseUrl":     profile.BaseURL(),
		"collections": len(cols),
	})
	s.state.EmitEvent("connection:changed", s.status())
	return cols, nil
}

// Disconnect drops the active client.
func (s *Service) Disconnect() {
	s.state.RemoveClient()
	s.state.SetLastError("")
	debug.LogConnection("Disconnected", nil)
	s.state.EmitEvent("connection:changed", s.status())
}

// TestConnection checks a profile's heartbeat without saving or connecting.
// The profile's timeout bounds the whole check.
func (s *Service) TestConnection(profile types.ConnectionProfile) error {
	profile = storage.NormalizeProfile(profile)
	if err := storage.ValidateProfile(profile); err != nil {
		return err
	}

	client := s.newClient(profile)
	defer client.CloseIdleConnections()

	ctx, cancel := core.ContextWithConnectTimeout(profile.TimeoutMs)
	defer cancel()
	if err := client.Heartbeat(ctx); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("connection timed out after %dms", effectiveTimeoutMs(profile))
		}
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}

// ListCollections re-lists the collections of the active connection.
func (s *Service) ListCollections() ([]types.CollectionRef, error) {
	client, err := s.state.GetClient()
	if err != nil {
		return nil, err
	}

	ctx, cancel := core.ContextWithTimeout()
	defer cancel()
	cols, err := client.ListCollections(ctx)
	if err != nil {
		s.state.SetLastError(err.Error())
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	s.state.SetCollections(cols)
	return cols, nil
}

// GetConnectionStatus verifies the active connection with a heartbeat.
func (s *Service) GetConnectionStatus() types.ConnectionStatus {
	client, err := s.state.GetClient()
	if err != nil {
		return s.status()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Heartbeat(ctx); err != nil {
		s.state.SetLastError(err.Error())
		return types.ConnectionStatus{Connected: false, BaseURL: client.BaseURL(), Error: err.Error()}
	}
	s.state.SetLastError("")
	return types.ConnectionStatus{Connected: true, BaseURL: client.BaseURL()}
}

func (s *Service) status() types.ConnectionStatus {
	if client, err := s.state.GetClient(); err == nil {
		return types.ConnectionStatus{Connected: true, BaseURL: client.BaseURL()}
	}
	return types.ConnectionStatus{
		Connected: false,
		BaseURL:   s.state.GetProfile().BaseURL(),
		Error:     s.state.GetLastError(),
	}
}

func effectiveTimeoutMs(p types.ConnectionProfile) int {
	if p.TimeoutMs > 0 {
		return p.TimeoutMs
	}
	return int(core.DefaultConnectTimeout / time.Millisecond)
}

// Shutdown drops the active client on app close.
func (s *Service) Shutdown(ctx context.Context) {
	s.state.RemoveClient()
}
