package core

import (
	"context"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// EventEmitter defines the interface for emitting events to the UI.
type EventEmitter interface {
	Emit(eventName string, data interface{})
}

// WailsEventEmitter emits events using the Wails runtime.
type WailsEventEmitter struct {
	Ctx context.Context
}

// Emit sends an event to the frontend via Wails runtime.
func (e *WailsEventEmitter) Emit(eventName string, data interface{}) {
	if e.Ctx != nil {
		runtime.EventsEmit(e.Ctx, eventName, data)
	}
}

// NoopEventEmitter is a no-op event emitter for testing.
type NoopEventEmitter struct{}

// Emit does nothing (used for tests).
func (e *NoopEventEmitter) Emit(eventName string, data interface{}) {}

// =============================================================================
// Custom Error Types
// =============================================================================

// NotConnectedError indicates no Chroma connection is established.
type NotConnectedError struct {
	BaseURL string
}

func (e *NotConnectedError) Error() string {
	if e.BaseURL == "" {
		return "not connected"
	}
	return fmt.Sprintf("not connected: %s", e.BaseURL)
}

// NoCollectionSelectedError indicates a page operation ran before a collection was chosen.
type NoCollectionSelectedError struct{}

func (e *NoCollectionSelectedError) Error() string {
	return "no collection selected"
}

// CollectionNotFoundError indicates a collection id is not in the listed collections.
type CollectionNotFoundError struct {
	CollectionID string
}

func (e *CollectionNotFoundError) Error() string {
	return fmt.Sprintf("collection not found: %s", e.CollectionID)
}

// ValidationError indicates a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
