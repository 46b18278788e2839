package document

import (
	"encoding/json"

	"github.com/peternagy/chromapal/internal/types"
)

// Format zips a fetch result into one row per id. Optional arrays that are
// missing or short leave the corresponding fields nil.
func Format(raw types.RawFetchResult) []types.DisplayRow {
	rows := make([]types.DisplayRow, len(raw.IDs))
	for i, id := range raw.IDs {
		row := types.DisplayRow{ID: id}
		if i < len(raw.Documents) {
			row.Document = raw.Documents[i]
		}
		if i < len(raw.Metadatas) {
			row.Metadata = raw.Metadatas[i]
		}
		if i < len(raw.Embeddings) {
			row.Embedding = parseEmbedding(raw.Embeddings[i])
		}
		rows[i] = row
	}
	return rows
}

// parseEmbedding returns nil for null or any non-array value.
func parseEmbedding(msg json.RawMessage) []float64 {
	if len(msg) == 0 || msg[0] != '[' {
		return nil
	}
	var vec []float64
	if err := json.Unmarshal(msg, &vec); err != nil {
		return nil
	}
	if vec == nil {
		vec = []float64{}
	}
	return vec
}
