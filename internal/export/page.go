package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/peternagy/chromapal/internal/debug"
	"github.com/peternagy/chromapal/internal/jsonutil"
	"github.com/peternagy/chromapal/internal/types"
)

// Format names accepted by ExportPage.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// WriteJSON writes rows as an indented JSON array.
func WriteJSON(w io.Writer, rows []types.DisplayRow) error {
	if rows == nil {
		rows = []types.DisplayRow{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// WriteCSV writes rows with columns id, document, one metadata.<key> column
// per metadata key, and embedding (a JSON array).
func WriteCSV(w io.Writer, rows []types.DisplayRow) error {
	keySet := make(map[string]bool)
	for _, row := range rows {
		for k := range row.Metadata {
			keySet[k] = true
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cw := csv.NewWriter(w)
	header := make([]string, 0, len(keys)+3)
	header = append(header, "id", "document")
	for _, k := range keys {
		header = append(header, "metadata."+k)
	}
	header = append(header, "embedding")
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		record := make([]string, 0, len(header))
		record = append(record, row.ID)
		if row.Document != nil {
			record = append(record, *row.Document)
		} else {
			record = append(record, "")
		}
		for _, k := range keys {
			record = append(record, jsonutil.ToString(row.Metadata[k]))
		}
		if row.Embedding != nil {
			b, err := json.Marshal(row.Embedding)
			if err != nil {
				return err
			}
			record = append(record, string(b))
		} else {
			record = append(record, "")
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportPageAsJSON exports the displayed rows as JSON via a native save dialog.
// An empty result means the user cancelled.
func (s *Service) ExportPageAsJSON(page int) (*types.ExportResult, error) {
	return s.exportPage(page, FormatJSON)
}

// ExportPageAsCSV exports the displayed rows as CSV via a native save dialog.
func (s *Service) ExportPageAsCSV(page int) (*types.ExportResult, error) {
	return s.exportPage(page, FormatCSV)
}

func (s *Service) exportPage(page int, format string) (*types.ExportResult, error) {
	col, _, err := s.rows.CurrentRows()
	if err != nil {
		return nil, err
	}

	filter := runtime.FileFilter{DisplayName: "JSON Files (*.json)", Pattern: "*.json"}
	if format == FormatCSV {
		filter = runtime.FileFilter{DisplayName: "CSV Files (*.csv)", Pattern: "*.csv"}
	}
	filePath, err := runtime.SaveFileDialog(s.state.Ctx, runtime.SaveDialogOptions{
		DefaultFilename: buildExportFilename(col, page, format),
		Title:           "Export Page",
		Filters:         []runtime.FileFilter{filter},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open save dialog: %w", err)
	}
	if filePath == "" {
		s.state.EmitEvent("export:cancelled", map[string]interface{}{"collection": col.Name})
		return &types.ExportResult{}, nil
	}

	return s.ExportPageToFile(filePath, format)
}

// ExportPageToFile writes the displayed rows to filePath, adding the format's
// extension when missing.
func (s *Service) ExportPageToFile(filePath, format string) (*types.ExportResult, error) {
	col, rows, err := s.rows.CurrentRows()
	if err != nil {
		return nil, err
	}
	if format != FormatJSON && format != FormatCSV {
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
	if !strings.HasSuffix(strings.ToLower(filePath), "."+format) {
		filePath += "." + format
	}

	f, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if format == FormatCSV {
		err = WriteCSV(w, rows)
	} else {
		err = WriteJSON(w, rows)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", format, err)
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", format, err)
	}

	debug.LogExport("Exported page", map[string]interface{}{
		"collection": col.Name,
		"rows":       len(rows),
		"format":     format,
		"path":       filePath,
	})
	result := &types.ExportResult{FilePath: filePath, Rows: len(rows)}
	s.state.EmitEvent("export:complete", result)
	return result, nil
}
