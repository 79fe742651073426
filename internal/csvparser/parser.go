// =============================================================================
// Grade Summary - CSV Reader
// =============================================================================
//
// This module reads the cell grid of an uploaded CSV file. Registrar systems
// offer CSV next to XLSX; both end up in the same normalizer, so this reader
// returns the same shape as the XLSX reader: one []string per line.
//
// FEATURES:
//   - Configurable delimiter (comma, semicolon, tab, pipe)
//   - Leading UTF-8 byte order mark is stripped (spreadsheet exports add one)
//   - Variable number of fields per row
//   - Lazy quotes
//
// =============================================================================

package csvparser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/ginjaninja78/gradesum/internal/config"
)

// utf8BOM is the byte order mark some spreadsheet programs write.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// =============================================================================
// READER FUNCTIONS
// =============================================================================

// ReadRows reads every line of a CSV stream.
//
// PARAMETERS:
//   - r: The CSV bytes.
//   - settings: The CSV parsing settings from the configuration.
//
// RETURNS:
//   - The rows, top to bottom, without any header interpretation.
//   - An error if the stream is not valid CSV.
func ReadRows(r io.Reader, settings config.CSVSettings) ([][]string, error) {
	reader := bufio.NewReader(r)

	// Drop the byte order mark, if any, so the first header matches exactly.
	if head, err := reader.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		if _, err := reader.Discard(len(utf8BOM)); err != nil {
			return nil, fmt.Errorf("failed to skip byte order mark: %w", err)
		}
	}

	csvReader := csv.NewReader(reader)
	configureReader(csvReader, settings)

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	return rows, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	reader.Comma = settings.Comma()

	// Title lines above the header usually have fewer fields than the data.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
}
