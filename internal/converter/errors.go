package converter

import (
	"errors"
	"fmt"
)

// =============================================================================
// PIPELINE ERRORS
// =============================================================================
//
// Per-file outcomes:
//   ErrSkippedFile  - required columns missing; warning, other files continue
//   ErrEmptyFile    - no data rows after the header; warning, other files continue
//   *FileReadError  - file could not be read; reported per file, batch fails
//
// Batch outcomes:
//   ErrNoValidData        - nothing left to merge
//   *MissingColumnsError  - see the validation package; canonical columns absent
//
// A grade that is not a number is not an error; it becomes a null grade.

var (
	// ErrSkippedFile marks a file that lacks one or more required columns.
	// The returned error also wraps a *validation.MissingColumnsError.
	ErrSkippedFile = errors.New("file skipped")

	// ErrEmptyFile marks a file with no data rows after its header.
	ErrEmptyFile = errors.New("no data found after skipping the first row")

	// ErrNoValidData is returned when no file contributed any rows.
	ErrNoValidData = errors.New("no valid data extracted from the uploaded files")
)

// FileReadError reports a file that could not be opened or parsed.
type FileReadError struct {
	File string
	Err  error
}

// Error implements the error interface.
func (e *FileReadError) Error() string {
	return fmt.Sprintf("error processing file '%s': %v", e.File, e.Err)
}

// Unwrap returns the underlying codec error.
func (e *FileReadError) Unwrap() error {
	return e.Err
}
