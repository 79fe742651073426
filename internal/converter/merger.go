package converter

import (
	"github.com/ginjaninja78/gradesum/internal/types"
)

// =============================================================================
// MERGER
// =============================================================================

// Merge concatenates RawTables into one CombinedTable.
//
// PARAMETERS:
//   - tables: The accepted tables in upload order.
//
// RETURNS:
//   - The CombinedTable. Rows keep file order first and row order within
//     each file second. Headers are the union in order of first appearance.
//   - ErrNoValidData if tables is empty.
func Merge(tables []*types.RawTable) (*types.CombinedTable, error) {
	if len(tables) == 0 {
		return nil, ErrNoValidData
	}

	total := 0
	for _, t := range tables {
		total += len(t.Rows)
	}

	combined := &types.CombinedTable{
		Rows: make([]types.Row, 0, total),
	}

	seen := make(map[string]struct{})
	for _, t := range tables {
		for _, h := range t.Headers {
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			combined.Headers = append(combined.Headers, h)
		}
		combined.Rows = append(combined.Rows, t.Rows...)
	}

	return combined, nil
}
