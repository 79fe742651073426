// =============================================================================
// Grade Summary - Column Mapper and Projector
// =============================================================================
//
// This module turns the merged table into the canonical table.
//
// COLUMN MAPPING:
//   | Source header      | Canonical header |
//   |--------------------|------------------|
//   | Περίοδος δήλωσης   | Περίοδος         |
//   | Τμήμα Τάξης        | Μάθημα           |
//   | Αριθμός Μητρώου    | Έτος Εγγραφής    |
//   | Βαθμολογία         | Βαθμολογία       |
//
//   Any other column passes through the mapper unchanged and is dropped by
//   the projector.
//
// FIELD TRANSFORMATIONS (applied to every row):
//   - Έτος Εγγραφής : first 3 characters of the registry number, as text.
//                     "2023001234" -> "202", "12" -> "12", "" -> "".
//   - Βαθμολογία    : parsed as a number; anything that does not parse
//                     (empty, "Α", "7,5") becomes a null grade.
//
// =============================================================================

package converter

import (
	"math"
	"strconv"
	"strings"

	"github.com/ginjaninja78/gradesum/internal/types"
	"github.com/ginjaninja78/gradesum/internal/validation"
)

// EnrollmentPrefixLength is the number of characters kept from the
// registry number.
const EnrollmentPrefixLength = 3

// RenameMap maps source headers to canonical headers. The grade header is
// identical on both sides and therefore not listed.
var RenameMap = map[string]string{
	types.OriginalPeriodColumn:   types.PeriodColumn,
	types.OriginalCourseColumn:   types.CourseColumn,
	types.OriginalRegistryColumn: types.EnrollmentYearColumn,
}

// =============================================================================
// COLUMN MAPPER
// =============================================================================

// Rename returns a copy of the table with the headers in RenameMap replaced
// by their canonical names. Unmatched headers pass through unchanged. When a
// file already carried a canonical header next to its source header, the
// renamed source column wins.
func Rename(table *types.CombinedTable) *types.CombinedTable {
	renamed := &types.CombinedTable{
		Rows: make([]types.Row, len(table.Rows)),
	}

	seen := make(map[string]struct{}, len(table.Headers))
	for _, h := range table.Headers {
		name := renameHeader(h)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		renamed.Headers = append(renamed.Headers, name)
	}

	for i, row := range table.Rows {
		out := make(types.Row, len(row))
		for h, v := range row {
			if to, ok := RenameMap[h]; ok {
				out[to] = v
				continue
			}
			if _, taken := out[h]; !taken {
				out[h] = v
			}
		}
		renamed.Rows[i] = out
	}

	return renamed
}

// renameHeader returns the canonical name of h, or h itself.
func renameHeader(h string) string {
	if to, ok := RenameMap[h]; ok {
		return to
	}
	return h
}

// =============================================================================
// PROJECTOR
// =============================================================================

// Project selects the canonical columns of a renamed table and applies the
// field transformations.
//
// PARAMETERS:
//   - table: The output of Rename.
//
// RETURNS:
//   - A new CanonicalTable sharing no memory with table.
//   - A *validation.MissingColumnsError naming every absent canonical column.
func Project(table *types.CombinedTable) (*types.CanonicalTable, error) {
	if err := validation.CheckColumns(validation.StageCanonical, table.Headers, types.CanonicalColumns); err != nil {
		return nil, err
	}

	canonical := &types.CanonicalTable{
		Rows: make([]types.CanonicalRow, len(table.Rows)),
	}

	for i, row := range table.Rows {
		canonical.Rows[i] = types.CanonicalRow{
			Period:               row[types.PeriodColumn],
			Course:               row[types.CourseColumn],
			EnrollmentYearPrefix: TruncatePrefix(row[types.EnrollmentYearColumn], EnrollmentPrefixLength),
			Grade:                ParseGrade(row[types.GradeColumn]),
		}
	}

	return canonical, nil
}

// =============================================================================
// FIELD TRANSFORMATIONS
// =============================================================================

// TruncatePrefix returns the first n characters of s. Values of n characters
// or fewer are returned unchanged.
func TruncatePrefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// nonDecimalNumberChars mark hex floats and digit separators, which
// strconv accepts but grade cells never carry.
const nonDecimalNumberChars = "xXpP_"

// ParseGrade converts a cell to a grade. It returns nil for empty cells,
// text that is not a decimal or scientific-notation number, and NaN.
func ParseGrade(cell string) *float64 {
	cell = strings.TrimSpace(cell)
	if cell == "" || strings.ContainsAny(cell, nonDecimalNumberChars) {
		return nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) {
		return nil
	}
	return &v
}
