// =============================================================================
// Grade Summary - Column Validation
// =============================================================================
//
// This module checks that a table carries the columns a pipeline stage
// depends on. It is used at two points:
//   1. Source level: every uploaded file must carry the four registrar
//      headers. A file that does not is skipped with a warning.
//   2. Canonical level: after renaming, the merged table must carry the four
//      canonical headers. If it does not, the whole batch fails.
//
// ERROR HANDLING:
//   - Missing columns are collected, not reported one at a time
//   - The error lists the absent headers in the order they are required
//   - Callers decide whether the error is a warning or fatal
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"
)

// =============================================================================
// VALIDATION STAGES
// =============================================================================

// Stage identifies where in the pipeline a column check happened.
type Stage string

const (
	// StageSource checks the headers of one uploaded file.
	StageSource Stage = "source"

	// StageCanonical checks the merged table after renaming.
	StageCanonical Stage = "canonical"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// MissingColumnsError reports required columns that a table does not carry.
type MissingColumnsError struct {
	// Stage is the pipeline point where the check failed.
	Stage Stage

	// Columns lists the absent headers in required order.
	Columns []string
}

// Error implements the error interface.
func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required %s columns: %s", e.Stage, strings.Join(e.Columns, ", "))
}

// =============================================================================
// VALIDATION FUNCTIONS
// =============================================================================

// MissingColumns returns the entries of required that do not appear in
// headers. Matching is exact and case-sensitive.
//
// PARAMETERS:
//   - headers: The headers the table carries.
//   - required: The headers the stage depends on.
//
// RETURNS:
//   - The absent headers in the order of required, or nil if none are absent.
func MissingColumns(headers, required []string) []string {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}

	var missing []string
	for _, col := range required {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// CheckColumns returns a *MissingColumnsError if any required header is
// absent, and nil otherwise.
func CheckColumns(stage Stage, headers, required []string) error {
	missing := MissingColumns(headers, required)
	if len(missing) == 0 {
		return nil
	}
	return &MissingColumnsError{Stage: stage, Columns: missing}
}
