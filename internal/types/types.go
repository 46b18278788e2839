// Package types contains shared type definitions used across the chromapal application.
package types

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// Connection Types
// =============================================================================

// ConnectionProfile describes how to reach a Chroma server.
// It is replaced wholesale on save and never mutated in place.
type ConnectionProfile struct {
	Protocol  string `json:"protocol"` // "http" or "https"
	Host      string `json:"host"`
	Port      int    `json:"port"`
	BasePath  string `json:"basePath"`  // e.g. "/api/v1", may be empty
	TimeoutMs int    `json:"timeoutMs"` // connection-test timeout only
}

// BaseURL derives protocol://host:port[basePath].
func (p ConnectionProfile) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d%s", p.Protocol, p.Host, p.Port, p.BasePath)
}

// ConnectionStatus represents the status of the active connection.
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	BaseURL   string `json:"baseUrl,omitempty"`
	Error     string `json:"error,omitempty"`
}

// =============================================================================
// Collection and Document Types
// =============================================================================

// CollectionRef identifies a collection. ID is required for every data
// operation; Name is display-only.
type CollectionRef struct {
	Name     string                 `json:"name"`
	ID       string                 `json:"id"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// PageRequest is a single limit/offset slice of a collection.
type PageRequest struct {
	CollectionID string `json:"collectionId"`
	Limit        int    `json:"limit"`
	Offset       int    `json:"offset"`
}

// NewPageRequest builds the request for a 1-based page number.
func NewPageRequest(collectionID string, page, pageSize int) PageRequest {
	offset := 0
	if page > 1 {
		offset = (page - 1) * pageSize
	}
	return PageRequest{CollectionID: collectionID, Limit: pageSize, Offset: offset}
}

// RawFetchResult is the body of a successful "get documents" call.
// Optional arrays are index-aligned with IDs; short arrays mean null at the
// missing indexes. Embeddings stay raw so an unexpected element shape cannot
// fail the whole decode.
type RawFetchResult struct {
	IDs        []string                 `json:"ids"`
	Documents  []*string                `json:"documents,omitempty"`
	Metadatas  []map[string]interface{} `json:"metadatas,omitempty"`
	Embeddings []json.RawMessage        `json:"embeddings,omitempty"`
}

// DisplayRow is one document zipped from a RawFetchResult.
type DisplayRow struct {
	ID        string                 `json:"id"`
	Document  *string                `json:"document"`
	Metadata  map[string]interface{} `json:"metadata"`
	Embedding []float64              `json:"embedding"`
}

// =============================================================================
// Pagination Types
// =============================================================================

// PaginationState is re-derived on every page, size or collection change.
// TotalItems is nil while the total is unknown.
type PaginationState struct {
	CurrentPage       int  `json:"currentPage"`
	ItemsPerPage      int  `json:"itemsPerPage"`
	TotalItems        *int `json:"totalItems"`
	TotalPages        int  `json:"totalPages"`
	LastPageItemCount int  `json:"lastPageItemCount"`
}

// TotalKnown reports whether TotalItems is authoritative.
func (s PaginationState) TotalKnown() bool {
	return s.TotalItems != nil
}

// PageLink is one entry of the page-number window. Ellipsis entries carry no page.
type PageLink struct {
	Page     int  `json:"page,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
	Current  bool `json:"current,omitempty"`
}

// ItemsInfo is the displayed item range ("Showing 51-100 of 237 items").
type ItemsInfo struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Total *int   `json:"total"`
	Text  string `json:"text"`
}

// NavButtons holds navigation-button availability.
type NavButtons struct {
	First bool `json:"first"`
	Prev  bool `json:"prev"`
	Next  bool `json:"next"`
	Last  bool `json:"last"`
}

// =============================================================================
// Negotiation Types
// =============================================================================

// NegotiationAttempt records one request-body variant tried against the
// "get documents" endpoint.
type NegotiationAttempt struct {
	Index      int    `json:"index"`   // 1-based position in the variant list, 0 for the fallback
	Variant    string `json:"variant"` // variant name
	Status     int    `json:"status"`  // HTTP status, 0 on transport failure
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// =============================================================================
// Schema Types
// =============================================================================

// MetadataColumn describes one metadata key seen on the displayed rows.
type MetadataColumn struct {
	Key        string  `json:"key"`
	Type       string  `json:"type"`       // e.g. "string", "number | null"
	Occurrence float64 `json:"occurrence"` // Percentage of rows containing this key
}

// =============================================================================
// View Model
// =============================================================================

// ViewModel is everything the renderer needs to draw the current collection view.
type ViewModel struct {
	Collection *CollectionRef       `json:"collection"`
	Rows       []DisplayRow         `json:"rows"`
	State      PaginationState      `json:"state"`
	Window     []PageLink           `json:"window"`
	ItemsInfo  ItemsInfo            `json:"itemsInfo"`
	Buttons    NavButtons           `json:"buttons"`
	SearchTerm string               `json:"searchTerm"`
	Filtered   bool                 `json:"filtered"`
	Columns    []MetadataColumn     `json:"columns"`
	Loading    bool                 `json:"loading"`
	Error      string               `json:"error,omitempty"`
	Attempts   []NegotiationAttempt `json:"attempts,omitempty"`
}

// =============================================================================
// Export Types
// =============================================================================

// ExportResult reports where an export was written.
type ExportResult struct {
	FilePath string `json:"filePath"`
	Rows     int    `json:"rows"`
}
