package debug

import (
	"context"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"
)

// Categories for debug logging (must match frontend DEBUG_CATEGORIES)
const (
	CategoryConnection  = "connection"
	CategoryNegotiation = "negotiation"
	CategoryCount       = "count"
	CategoryPagination  = "pagination"
	CategorySearch      = "search"
	CategoryExport      = "export"
	CategoryUI          = "ui"
	CategoryWails       = "wails"
	CategoryPerformance = "performance"
)

// Logger provides debug logging that emits events to the frontend
// and mirrors every entry to the structured log.
type Logger struct {
	ctx     context.Context
	zap     *zap.Logger
	enabled bool
	mu      sync.RWMutex
}

// Global logger instance
var globalLogger = &Logger{zap: zap.NewNop()}

// Init sets the Wails context used for frontend events.
func Init(ctx context.Context) {
	globalLogger.mu.Lock()
	globalLogger.ctx = ctx
	globalLogger.mu.Unlock()
}

// SetLogger sets the structured logger entries are mirrored to.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	globalLogger.mu.Lock()
	globalLogger.zap = l
	globalLogger.mu.Unlock()
}

// SetEnabled enables or disables frontend debug events
func SetEnabled(enabled bool) {
	globalLogger.mu.Lock()
	globalLogger.enabled = enabled
	globalLogger.mu.Unlock()
}

// IsEnabled returns whether debug logging is enabled
func IsEnabled() bool {
	globalLogger.mu.RLock()
	defer globalLogger.mu.RUnlock()
	return globalLogger.enabled
}

// Log writes a debug entry and, when enabled, emits it to the frontend.
// category: one of the Category* constants
// message: short one-liner summary
// details: optional map with additional context (can be nil)
func Log(category, message string, details map[string]interface{}) {
	globalLogger.mu.RLock()
	enabled := globalLogger.enabled
	ctx := globalLogger.ctx
	zl := globalLogger.zap
	globalLogger.mu.RUnlock()

	if ce := zl.Check(zap.DebugLevel, message); ce != nil {
		fields := make([]zap.Field, 0, len(details)+1)
		fields = append(fields, zap.String("category", category))
		for k, v := range details {
			fields = append(fields, zap.Any(k, v))
		}
		ce.Write(fields...)
	}

	if !enabled || ctx == nil {
		return
	}

	runtime.EventsEmit(ctx, "debug:log", category, message, details)
}

// Convenience functions for each category

// LogConnection logs a connection-related debug message
func LogConnection(message string, details map[string]interface{}) {
	Log(CategoryConnection, message, details)
}

// LogNegotiation logs a request-format negotiation message
func LogNegotiation(message string, details map[string]interface{}) {
	Log(CategoryNegotiation, message, details)
}

// LogCount logs a count-resolution message
func LogCount(message string, details map[string]interface{}) {
	Log(CategoryCount, message, details)
}

// LogPagination logs a pagination state transition
func LogPagination(message string, details map[string]interface{}) {
	Log(CategoryPagination, message, details)
}

// LogSearch logs an in-page search message
func LogSearch(message string, details map[string]interface{}) {
	Log(CategorySearch, message, details)
}

// LogExport logs an export-related debug message
func LogExport(message string, details map[string]interface{}) {
	Log(CategoryExport, message, details)
}

// LogPerformance logs a performance-related debug message
func LogPerformance(message string, details map[string]interface{}) {
	Log(CategoryPerformance, message, details)
}
