// =============================================================================
// Grade Summary - XLSX Exporter
// =============================================================================
//
// This module serializes summary tables into downloadable XLSX workbooks.
//
// WORKBOOK LAYOUT:
//   A single sheet named Sheet1. Row 1 is the header row in the table's
//   declared column order, followed by one row per summary row. Keys are
//   written as text and counts as numbers.
//
//   | Μάθημα | Εγγεγραμμένοι | Συμμετείχαν | Επιτυχόντες |
//   |--------|---------------|-------------|-------------|
//   | ΜΑΘ101 | 4             | 3           | 2           |
//
// CACHING:
//   Blobs are cached by a fingerprint of the table content, so asking for
//   the same table twice serializes it once. Reset drops every cached blob.
//
// =============================================================================

package xlsxwriter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync/atomic"

	gocache "github.com/patrickmn/go-cache"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/gradesum/internal/metrics"
	"github.com/ginjaninja78/gradesum/internal/types"
)

const (
	// SheetName is the name of the only sheet of an exported workbook.
	SheetName = "Sheet1"

	// MIMEType is the content type of an exported workbook.
	MIMEType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// FileName returns the download name of a summary keyed by keyColumn.
// Summaries computed over course-filtered rows carry a "_filtered" suffix.
func FileName(keyColumn string, filtered bool) string {
	if filtered {
		return fmt.Sprintf("summary_by_%s_filtered.xlsx", keyColumn)
	}
	return fmt.Sprintf("summary_by_%s.xlsx", keyColumn)
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// Serialize writes summary into a new workbook and returns its bytes.
//
// PARAMETERS:
//   - summary: The table to write. Its Columns() become the header row.
//
// RETURNS:
//   - The XLSX bytes.
//   - An error if the workbook could not be built.
func Serialize(summary *types.SummaryTable) ([]byte, error) {
	if summary == nil {
		return nil, fmt.Errorf("no summary to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeRow(f, 1, stringsToCells(summary.Columns())); err != nil {
		return nil, err
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(summary.Columns()), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve header range: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", last, style); err != nil {
		return nil, fmt.Errorf("failed to style header row: %w", err)
	}

	for i, record := range summary.Records() {
		if err := writeRow(f, i+2, record); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, rowNum int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("failed to resolve row %d: %w", rowNum, err)
	}
	if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}
	return nil
}

func stringsToCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

// Fingerprint returns a stable digest of the table content. Two tables with
// the same key column and the same rows in the same order share a
// fingerprint.
func Fingerprint(summary *types.SummaryTable) string {
	h := sha256.New()
	fmt.Fprintf(h, "%q\n", summary.KeyColumn)
	for _, row := range summary.Rows {
		fmt.Fprintf(h, "%q\t%d\t%d\t%d\n", row.Key, row.Enrolled, row.Participated, row.Passed)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// =============================================================================
// CACHING EXPORTER
// =============================================================================

// Exporter serializes summary tables and caches the resulting blobs.
// It is safe for concurrent use.
type Exporter struct {
	cache          *gocache.Cache
	serializations atomic.Int64
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

// NewExporter creates an Exporter with an empty cache. Cached blobs never
// expire on their own; they live until Reset.
func NewExporter(logger *slog.Logger, m *metrics.Metrics) *Exporter {
	return &Exporter{
		cache:   gocache.New(gocache.NoExpiration, 0),
		logger:  logger,
		metrics: m,
	}
}

// Export returns the XLSX bytes of summary, serializing it only if an
// identical table has not been exported since the last Reset.
func (e *Exporter) Export(summary *types.SummaryTable) ([]byte, error) {
	if summary == nil {
		return nil, fmt.Errorf("no summary to export")
	}

	key := Fingerprint(summary)
	if cached, ok := e.cache.Get(key); ok {
		e.metrics.ExportCacheHit()
		e.logger.Debug("export served from cache", slog.String("key_column", summary.KeyColumn))
		return cached.([]byte), nil
	}

	data, err := Serialize(summary)
	if err != nil {
		return nil, err
	}

	e.serializations.Add(1)
	e.metrics.ExportSerialized()
	e.cache.Set(key, data, gocache.NoExpiration)
	e.logger.Debug("export serialized",
		slog.String("key_column", summary.KeyColumn),
		slog.Int("rows", len(summary.Rows)),
		slog.Int("bytes", len(data)))

	return data, nil
}

// Serializations returns how many workbooks the exporter has built.
func (e *Exporter) Serializations() int64 {
	return e.serializations.Load()
}

// Reset drops every cached blob.
func (e *Exporter) Reset() {
	e.cache.Flush()
}
