package document

import (
	"strings"

	"github.com/peternagy/chromapal/internal/jsonutil"
	"github.com/peternagy/chromapal/internal/types"
)

// Matches reports whether a row's id, document text or any metadata key or
// value contains term, ignoring case. An empty term matches everything.
func Matches(row types.DisplayRow, term string) bool {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(row.ID), needle) {
		return true
	}
	if row.Document != nil && strings.Contains(strings.ToLower(*row.Document), needle) {
		return true
	}
	for k, v := range row.Metadata {
		if strings.Contains(strings.ToLower(k), needle) {
			return true
		}
		if strings.Contains(strings.ToLower(jsonutil.ToString(v)), needle) {
			return true
		}
	}
	return false
}

// Filter returns the rows matching term. The input slice is not modified.
func Filter(rows []types.DisplayRow, term string) []types.DisplayRow {
	out := make([]types.DisplayRow, 0, len(rows))
	for _, row := range rows {
		if Matches(row, term) {
			out = append(out, row)
		}
	}
	return out
}
