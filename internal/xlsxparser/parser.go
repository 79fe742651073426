// =============================================================================
// Grade Summary - XLSX Reader
// =============================================================================
//
// This module reads the cell grid of an uploaded XLSX workbook. It does not
// interpret the grid: header detection, the leading-row skip and column
// validation happen in the converter's normalizer.
//
// WORKBOOK EXPECTATIONS:
//   Only the first sheet is read. Registrar exports put a title line above
//   the header row, so a typical grid looks like this:
//
//   | Row | Column A         | Column B    | Column C        | Column D   |
//   |-----|------------------|-------------|-----------------|------------|
//   | 1   | Export 2024-06   |             |                 |            |
//   | 2   | Περίοδος δήλωσης | Τμήμα Τάξης | Αριθμός Μητρώου | Βαθμολογία |
//   | 3   | 2023-2024 Χ      | ΜΑΘ101      | 2021004512      | 7.5        |
//
// CELL VALUES:
//   Cells are read as raw values (no number formats applied), so a grade
//   stored as 7.5 is returned as "7.5" regardless of the display format and
//   a registry number is never rendered in scientific notation.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"
)

// =============================================================================
// READER FUNCTIONS
// =============================================================================

// ReadRows reads the raw cell grid of the first sheet of a workbook.
//
// PARAMETERS:
//   - r: The workbook bytes.
//
// RETURNS:
//   - The rows of the first sheet, top to bottom. Rows may have different
//     lengths; trailing empty cells are not included.
//   - An error if the workbook cannot be opened or the sheet cannot be read.
func ReadRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return readFirstSheet(f)
}

// ReadFile reads the raw cell grid of the first sheet of a workbook on disk.
func ReadFile(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ReadRows(file)
}

// readFirstSheet returns the rows of the first sheet in workbook order.
func readFirstSheet(f *excelize.File) ([][]string, error) {
	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of sheet '%s': %w", sheetName, err)
	}

	return rows, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// IsRowEmpty checks if a row contains only empty cells.
func IsRowEmpty(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
