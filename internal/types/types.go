// =============================================================================
// Grade Summary - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - xlsxparser  (RawTable)
//   - converter   (CombinedTable, CanonicalTable)
//   - aggregate   (SummaryTable)
//   - xlsxwriter  (SummaryTable)
//   - session     (everything above)
//
// =============================================================================

package types

import "strconv"

// =============================================================================
// COLUMN NAMES
// =============================================================================

// Column headers expected in the uploaded registrar exports.
// Matching is exact and case-sensitive.
const (
	OriginalPeriodColumn   = "Περίοδος δήλωσης"
	OriginalCourseColumn   = "Τμήμα Τάξης"
	OriginalRegistryColumn = "Αριθμός Μητρώου"
	OriginalGradeColumn    = "Βαθμολογία"
)

// Column headers of the canonical table.
const (
	PeriodColumn         = "Περίοδος"
	CourseColumn         = "Μάθημα"
	EnrollmentYearColumn = "Έτος Εγγραφής"
	GradeColumn          = "Βαθμολογία"
)

// Count columns of a summary table.
const (
	EnrolledColumn     = "Εγγεγραμμένοι"
	ParticipatedColumn = "Συμμετείχαν"
	PassedColumn       = "Επιτυχόντες"
)

// RequiredOriginalColumns lists the headers every source file must carry.
var RequiredOriginalColumns = []string{
	OriginalPeriodColumn,
	OriginalCourseColumn,
	OriginalRegistryColumn,
	OriginalGradeColumn,
}

// CanonicalColumns is the fixed column order of the canonical table.
var CanonicalColumns = []string{
	PeriodColumn,
	CourseColumn,
	EnrollmentYearColumn,
	GradeColumn,
}

// =============================================================================
// INGESTION TABLES
// =============================================================================

// Row maps a column header to the text of its cell.
// Missing cells are represented by the empty string.
type Row map[string]string

// RawTable is the content of one source file after its leading row has been
// discarded and its header row consumed.
type RawTable struct {
	// SourceFile is the display name of the file the rows came from.
	SourceFile string

	// Headers contains the column headers in file order.
	Headers []string

	// Rows contains the data rows in file order.
	Rows []Row
}

// HasColumn reports whether the table has a column with the given header.
func (t *RawTable) HasColumn(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// CombinedTable is the concatenation of every accepted RawTable.
type CombinedTable struct {
	// Headers is the ordered union of the headers of all contributing tables.
	Headers []string

	// Rows preserves file order first and row order within each file second.
	Rows []Row
}

// HasColumn reports whether the table has a column with the given header.
func (t *CombinedTable) HasColumn(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// =============================================================================
// CANONICAL TABLE
// =============================================================================

// CanonicalRow is one row of the canonical table.
type CanonicalRow struct {
	Period               string   `json:"period"`
	Course               string   `json:"course"`
	EnrollmentYearPrefix string   `json:"enrollment_year_prefix"`
	Grade                *float64 `json:"grade"`
}

// Value returns the text of the named column. The grade column is rendered
// in its shortest decimal form and as the empty string when null.
func (r CanonicalRow) Value(column string) string {
	switch column {
	case PeriodColumn:
		return r.Period
	case CourseColumn:
		return r.Course
	case EnrollmentYearColumn:
		return r.EnrollmentYearPrefix
	case GradeColumn:
		if r.Grade == nil {
			return ""
		}
		return formatGrade(*r.Grade)
	}
	return ""
}

// CanonicalTable is the long-lived artifact produced by a successful ingest.
type CanonicalTable struct {
	Rows []CanonicalRow `json:"rows"`
}

// Columns returns the fixed column order of the table.
func (t *CanonicalTable) Columns() []string {
	return append([]string(nil), CanonicalColumns...)
}

// Len returns the number of rows.
func (t *CanonicalTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// =============================================================================
// SUMMARY TABLE
// =============================================================================

// SummaryRow holds the three counts of one group.
type SummaryRow struct {
	Key          string `json:"key"`
	Enrolled     int    `json:"enrolled"`
	Participated int    `json:"participated"`
	Passed       int    `json:"passed"`
}

// SummaryTable is the result of grouping a canonical table by one column.
type SummaryTable struct {
	// KeyColumn is the canonical column the rows were grouped by.
	KeyColumn string `json:"key_column"`

	// Rows holds one entry per distinct key, sorted by key.
	Rows []SummaryRow `json:"rows"`
}

// Columns returns the declared column order of the table.
func (s *SummaryTable) Columns() []string {
	return []string{s.KeyColumn, EnrolledColumn, ParticipatedColumn, PassedColumn}
}

// Records returns the rows as cell values in declared column order.
func (s *SummaryTable) Records() [][]interface{} {
	records := make([][]interface{}, len(s.Rows))
	for i, row := range s.Rows {
		records[i] = []interface{}{row.Key, row.Enrolled, row.Participated, row.Passed}
	}
	return records
}

// formatGrade renders a grade without trailing zeros.
func formatGrade(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
