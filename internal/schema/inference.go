// Package schema infers the metadata columns of the displayed rows.
package schema

import (
	"sort"
	"strings"

	"github.com/peternagy/chromapal/internal/jsonutil"
	"github.com/peternagy/chromapal/internal/types"
)

// InferColumns returns one column per metadata key seen on rows, sorted by key.
// Type lists every JSON type observed for the key; Occurrence is the
// percentage of rows carrying it.
func InferColumns(rows []types.DisplayRow) []types.MetadataColumn {
	if len(rows) == 0 {
		return []types.MetadataColumn{}
	}

	counts := make(map[string]int)
	fieldTypes := make(map[string]map[string]bool) // key -> set of types
	for _, row := range rows {
		for key, value := range row.Metadata {
			counts[key]++
			if fieldTypes[key] == nil {
				fieldTypes[key] = make(map[string]bool)
			}
			fieldTypes[key][jsonutil.TypeName(value)] = true
		}
	}

	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	columns := make([]types.MetadataColumn, 0, len(keys))
	for _, key := range keys {
		typeList := make([]string, 0, len(fieldTypes[key]))
		for t := range fieldTypes[key] {
			typeList = append(typeList, t)
		}
		sort.Strings(typeList)

		columns = append(columns, types.MetadataColumn{
			Key:        key,
			Type:       strings.Join(typeList, " | "),
			Occurrence: float64(counts[key]) / float64(len(rows)) * 100,
		})
	}
	return columns
}
