// =============================================================================
// Grade Summary - Aggregator
// =============================================================================
//
// This module groups a canonical table by one column and counts, per group:
//
//   - Εγγεγραμμένοι (Enrolled)     : every row of the group
//   - Συμμετείχαν   (Participated) : rows with a grade
//   - Επιτυχόντες   (Passed)       : rows with a grade of at least PassThreshold
//
// It also provides the two helpers the selection screens are built on:
// DistinctValues (the options of a selection) and Filter (set membership).
//
// =============================================================================

package aggregate

import (
	"sort"

	"github.com/ginjaninja78/gradesum/internal/types"
)

// PassThreshold is the lowest passing grade.
const PassThreshold = 5.0

// =============================================================================
// GROUPING
// =============================================================================

// Aggregate groups table by keyColumn and returns one SummaryRow per distinct
// key, sorted by key. An empty key is a group of its own. The result does not
// depend on the order of the input rows.
//
// PARAMETERS:
//   - table: The rows to group. A nil table yields an empty summary.
//   - keyColumn: One of the canonical column names.
//
// RETURNS:
//   - A new SummaryTable.
func Aggregate(table *types.CanonicalTable, keyColumn string) *types.SummaryTable {
	summary := &types.SummaryTable{KeyColumn: keyColumn}
	if table.Len() == 0 {
		return summary
	}

	groups := make(map[string]*types.SummaryRow)
	for _, row := range table.Rows {
		key := row.Value(keyColumn)
		g, ok := groups[key]
		if !ok {
			g = &types.SummaryRow{Key: key}
			groups[key] = g
		}

		g.Enrolled++
		if row.Grade == nil {
			continue
		}
		g.Participated++
		if *row.Grade >= PassThreshold {
			g.Passed++
		}
	}

	summary.Rows = make([]types.SummaryRow, 0, len(groups))
	for _, g := range groups {
		summary.Rows = append(summary.Rows, *g)
	}
	sort.Slice(summary.Rows, func(i, j int) bool {
		return summary.Rows[i].Key < summary.Rows[j].Key
	})

	return summary
}

// =============================================================================
// SELECTION HELPERS
// =============================================================================

// DistinctValues returns the sorted distinct values of column.
func DistinctValues(table *types.CanonicalTable, column string) []string {
	if table.Len() == 0 {
		return []string{}
	}

	seen := make(map[string]struct{})
	for _, row := range table.Rows {
		seen[row.Value(column)] = struct{}{}
	}

	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// Filter returns the rows whose value in column is one of values, in their
// original order. The returned table shares no row slice with table.
func Filter(table *types.CanonicalTable, column string, values []string) *types.CanonicalTable {
	out := &types.CanonicalTable{Rows: []types.CanonicalRow{}}
	if table.Len() == 0 || len(values) == 0 {
		return out
	}

	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}

	for _, row := range table.Rows {
		if _, ok := set[row.Value(column)]; ok {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}
