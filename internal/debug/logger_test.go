package debug

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLog_MirrorsToStructuredLogger(t *testing.T) {
	zc, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(zc))
	defer SetLogger(nil)

	LogPagination("page committed", map[string]interface{}{"page": 3})

	entries := logs.FilterMessage("page committed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["category"] != CategoryPagination {
		t.Errorf("category = %v", fields["category"])
	}
	if fields["page"] != int64(3) {
		t.Errorf("page = %v (%T)", fields["page"], fields["page"])
	}
}

func TestSetEnabled(t *testing.T) {
	SetEnabled(true)
	if !IsEnabled() {
		t.Error("expected enabled")
	}
	SetEnabled(false)
	if IsEnabled() {
		t.Error("expected disabled")
	}
	// No Wails context: must not panic when enabled.
	SetEnabled(true)
	Log(CategoryUI, "no context", nil)
	SetEnabled(false)
}
