// =============================================================================
// Grade Summary - Row Normalizer
// =============================================================================
//
// This module turns one uploaded file into a RawTable.
//
// FILE LAYOUT:
//   Row 1        : discarded (registrar exports put a title line here)
//   Row 2        : header row
//   Row 3 onward : data rows
//
// OUTCOMES:
//   - RawTable        : the header carries all four required columns and at
//                       least one non-blank data row follows
//   - ErrSkippedFile  : one or more required columns are missing (a file with
//                       no header row at all lands here too)
//   - ErrEmptyFile    : the header is fine but no data rows follow
//   - *FileReadError  : the file could not be opened or decoded
//
// =============================================================================

package converter

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/gradesum/internal/config"
	"github.com/ginjaninja78/gradesum/internal/csvparser"
	"github.com/ginjaninja78/gradesum/internal/types"
	"github.com/ginjaninja78/gradesum/internal/validation"
	"github.com/ginjaninja78/gradesum/internal/xlsxparser"
)

// leadingRowsToSkip is the number of physical rows above the header row.
const leadingRowsToSkip = 1

// =============================================================================
// SOURCE FILES
// =============================================================================

// Source is one uploaded file.
type Source struct {
	// Name is the display name, used in messages and to pick the reader.
	Name string

	// Open returns a fresh reader over the file content.
	Open func() (io.ReadCloser, error)
}

// FileSource returns a Source reading a file on disk.
func FileSource(path string) Source {
	return Source{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// BytesSource returns a Source over an in-memory file.
func BytesSource(name string, data []byte) Source {
	return Source{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// =============================================================================
// NORMALIZER
// =============================================================================

// Normalizer reads uploaded files into RawTables.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	csvSettings config.CSVSettings
}

// NewNormalizer creates a Normalizer using the given CSV settings for
// files with a .csv extension. Every other file is read as XLSX.
func NewNormalizer(csvSettings config.CSVSettings) *Normalizer {
	return &Normalizer{csvSettings: csvSettings}
}

// Normalize reads one file and returns its RawTable.
//
// PARAMETERS:
//   - src: The uploaded file.
//
// RETURNS:
//   - The RawTable on success.
//   - An error matching ErrSkippedFile or ErrEmptyFile, or a *FileReadError.
func (n *Normalizer) Normalize(src Source) (*types.RawTable, error) {
	rows, err := n.readRows(src)
	if err != nil {
		return nil, &FileReadError{File: src.Name, Err: err}
	}
	return NormalizeRows(src.Name, rows)
}

// readRows picks the reader by file extension and returns the cell grid.
func (n *Normalizer) readRows(src Source) ([][]string, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer rc.Close()

	if strings.EqualFold(filepath.Ext(src.Name), ".csv") {
		return csvparser.ReadRows(rc, n.csvSettings)
	}
	return xlsxparser.ReadRows(rc)
}

// NormalizeRows applies the leading-row skip, header extraction and column
// validation to an already decoded cell grid.
func NormalizeRows(name string, rows [][]string) (*types.RawTable, error) {
	if len(rows) <= leadingRowsToSkip {
		rows = nil
	} else {
		rows = rows[leadingRowsToSkip:]
	}

	var headers []string
	if len(rows) > 0 {
		headers = cleanHeaders(rows[0])
		rows = rows[1:]
	}

	if err := validation.CheckColumns(validation.StageSource, headers, types.RequiredOriginalColumns); err != nil {
		return nil, fmt.Errorf("%w: '%s': %w", ErrSkippedFile, name, err)
	}

	table := &types.RawTable{
		SourceFile: name,
		Headers:    headers,
		Rows:       make([]types.Row, 0, len(rows)),
	}

	for _, row := range rows {
		if xlsxparser.IsRowEmpty(row) {
			continue
		}

		record := make(types.Row, len(headers))
		for col, header := range headers {
			if col < len(row) {
				record[header] = row[col]
			} else {
				record[header] = ""
			}
		}
		table.Rows = append(table.Rows, record)
	}

	if len(table.Rows) == 0 {
		return nil, fmt.Errorf("%w: '%s'", ErrEmptyFile, name)
	}

	return table, nil
}

// cleanHeaders names blank header cells and disambiguates repeated ones so
// that every column keeps its own key. The first occurrence of a repeated
// header keeps the plain name.
func cleanHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int, len(raw))

	for i, header := range raw {
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		if n, dup := seen[header]; dup {
			seen[header] = n + 1
			header = fmt.Sprintf("%s.%d", header, n)
		} else {
			seen[header] = 1
		}
		headers[i] = header
	}

	return headers
}
