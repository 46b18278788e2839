package storage

import (
	"strings"

	"github.com/peternagy/chromapal/internal/core"
	"github.com/peternagy/chromapal/internal/types"
)

// NormalizeProfile trims whitespace, lower-cases the protocol and removes a
// trailing slash from the base path.
func NormalizeProfile(p types.ConnectionProfile) types.ConnectionProfile {
	p.Protocol = strings.ToLower(strings.TrimSpace(p.Protocol))
	p.Host = strings.TrimSpace(p.Host)
	p.BasePath = strings.TrimSpace(p.BasePath)
	if len(p.BasePath) > 1 {
		p.BasePath = strings.TrimRight(p.BasePath, "/")
	}
	if p.BasePath == "/" {
		p.BasePath = ""
	}
	return p
}

// ValidateProfile checks a profile before it is saved or used.
func ValidateProfile(p types.ConnectionProfile) error {
	if p.Protocol != "http" && p.Protocol != "https" {
		return &core.ValidationError{Field: "protocol", Message: "must be http or https"}
	}
	if p.Host == "" {
		return &core.ValidationError{Field: "host", Message: "cannot be empty"}
	}
	if strings.Contains(p.Host, "://") {
		return &core.ValidationError{Field: "host", Message: "must not include a scheme"}
	}
	if strings.ContainsAny(p.Host, "/?# ") {
		return &core.ValidationError{Field: "host", Message: "must be a bare host name or address"}
	}
	if p.Port < 1 || p.Port > 65535 {
		return &core.ValidationError{Field: "port", Message: "must be between 1 and 65535"}
	}
	if p.BasePath != "" && !strings.HasPrefix(p.BasePath, "/") {
		return &core.ValidationError{Field: "basePath", Message: `must be empty or start with "/"`}
	}
	if strings.ContainsAny(p.BasePath, "?# ") {
		return &core.ValidationError{Field: "basePath", Message: "must be a plain path"}
	}
	if p.TimeoutMs < 0 {
		return &core.ValidationError{Field: "timeoutMs", Message: "cannot be negative"}
	}
	return nil
}
