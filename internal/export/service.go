// Package export writes the loaded page to JSON or CSV files.
package export

import (
	"fmt"
	"os/exec"
	goruntime "runtime"
	"strings"
	"time"

	"github.com/peternagy/chromapal/internal/core"
	"github.com/peternagy/chromapal/internal/types"
)

// RowSource supplies the rows currently on screen.
type RowSource interface {
	CurrentRows() (types.CollectionRef, []types.DisplayRow, error)
}

// Service handles export operations.
type Service struct {
	state *core.AppState
	rows  RowSource
}

// NewService creates a new export service.
func NewService(state *core.AppState, rows RowSource) *Service {
	return &Service{
		state: state,
		rows:  rows,
	}
}

// sanitizeFilename converts a string to a safe filename component.
func sanitizeFilename(name string) string {
	var sanitized strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			sanitized.WriteRune(r)
		} else if r == ' ' {
			sanitized.WriteRune('_')
		}
	}
	return sanitized.String()
}

// buildExportFilename creates a filename from the collection name, page and date.
func buildExportFilename(col types.CollectionRef, page int, ext string) string {
	safeName := sanitizeFilename(col.Name)
	if safeName == "" {
		safeName = "collection"
	}
	if len(safeName) > 30 {
		safeName = safeName[:30]
	}
	timestamp := time.Now().Format("2006-01-02")
	return fmt.Sprintf("%s_page%d_%s.%s", safeName, page, timestamp, ext)
}

// RevealInFinder opens the OS file manager and selects the specified file.
func (s *Service) RevealInFinder(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("file path is required")
	}

	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", "-R", filePath)
	case "windows":
		cmd = exec.Command("explorer", "/select,", filePath)
	case "linux":
		// File managers differ; open the containing directory
		dir := filePath
		if idx := strings.LastIndex(filePath, "/"); idx > 0 {
			dir = filePath[:idx]
		}
		cmd = exec.Command("xdg-open", dir)
	default:
		return fmt.Errorf("unsupported operating system: %s", goruntime.GOOS)
	}

	return cmd.Start()
}
