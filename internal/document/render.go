// Package document turns fetched Chroma documents into display rows and
// serves the in-page search and raw JSON views over them.
package document

import (
	"encoding/json"
	"fmt"

	"github.com/peternagy/chromapal/internal/types"
)

// RawJSON renders rows as indented JSON for the raw view.
func RawJSON(rows []types.DisplayRow) (string, error) {
	if rows == nil {
		rows = []types.DisplayRow{}
	}
	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render rows: %w", err)
	}
	return string(b), nil
}
