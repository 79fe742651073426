// Package testutil builds in-memory spreadsheet fixtures for tests.
package testutil

import (
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/gradesum/internal/types"
)

// TitleRow is the line registrar exports put above the header row.
var TitleRow = []interface{}{"Αναφορά βαθμολογιών"}

// StandardHeader is a header row carrying the required columns plus one extra.
var StandardHeader = []interface{}{
	types.OriginalPeriodColumn,
	types.OriginalCourseColumn,
	"Ονοματεπώνυμο",
	types.OriginalRegistryColumn,
	types.OriginalGradeColumn,
}

// Workbook returns the bytes of an XLSX file whose first sheet holds rows,
// starting at A1.
func Workbook(t testing.TB, rows ...[]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("failed to build cell name: %v", err)
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatalf("failed to write row %d: %v", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("failed to serialize workbook: %v", err)
	}
	return buf.Bytes()
}

// GradeWorkbook returns a registrar export: title row, StandardHeader and
// one data row per entry of data. Each entry is period, course, name,
// registry number, grade.
func GradeWorkbook(t testing.TB, data ...[]interface{}) []byte {
	t.Helper()
	rows := append([][]interface{}{TitleRow, StandardHeader}, data...)
	return Workbook(t, rows...)
}

// Record is a shorthand for one data row of GradeWorkbook.
func Record(period, course, registry string, grade interface{}) []interface{} {
	return []interface{}{period, course, "Φοιτητής", registry, grade}
}
