// =============================================================================
// Grade Summary - Converter Module
// =============================================================================
//
// This module contains the ingestion pipeline. It turns a batch of uploaded
// files into the canonical table.
//
// CONVERSION PIPELINE:
//   1. Normalize every file (skip the title row, read the header, check the
//      required columns). Files are independent and may run in parallel.
//   2. Classify each file: accepted, skipped, empty or failed.
//   3. Stop if any file failed to read. No partial merge is attempted.
//   4. Merge the accepted tables in upload order.
//   5. Rename the registrar headers to canonical headers.
//   6. Project the canonical columns and apply the field transformations.
//
// ERROR HANDLING:
//   Per-file problems are recorded in the file's FileResult and never stop
//   the other files. Batch problems (a read failure, nothing to merge, a
//   canonical column missing) are reported in Result.Err and no canonical
//   table is produced.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/gradesum/internal/config"
	"github.com/ginjaninja78/gradesum/internal/metrics"
	"github.com/ginjaninja78/gradesum/internal/types"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Outcome classifies what happened to one uploaded file.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeEmpty    Outcome = "empty"
	OutcomeFailed   Outcome = "failed"
)

// FileResult represents the outcome of normalizing a single file.
type FileResult struct {
	// FilePath is the display name of the uploaded file.
	FilePath string `json:"file"`

	// Outcome classifies the result.
	Outcome Outcome `json:"outcome"`

	// Rows is the number of data rows the file contributed.
	Rows int `json:"rows"`

	// Message is the user-facing warning or error text, if any.
	Message string `json:"message,omitempty"`

	// Error is the underlying error for skipped, empty and failed files.
	Error error `json:"-"`
}

// IsWarning reports whether the file was left out without failing the batch.
func (r FileResult) IsWarning() bool {
	return r.Outcome == OutcomeSkipped || r.Outcome == OutcomeEmpty
}

// Result represents the outcome of processing one upload batch.
type Result struct {
	// Files holds one entry per uploaded file, in upload order.
	Files []FileResult

	// Canonical is the canonical table. It is nil when Err is set.
	Canonical *types.CanonicalTable

	// Err is the batch-level error, if any.
	Err error

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// FilesAccepted is the number of files merged into the canonical table.
	FilesAccepted int

	// RowsMerged is the number of rows in the canonical table.
	RowsMerged int

	// ProcessingTime is the time taken to process the batch.
	ProcessingTime time.Duration
}

// Success reports whether a canonical table was produced.
func (r *Result) Success() bool {
	return r.Err == nil && r.Canonical != nil
}

// Warnings returns the files that were left out with a warning.
func (r *Result) Warnings() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.IsWarning() {
			out = append(out, f)
		}
	}
	return out
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter runs the ingestion pipeline.
type Converter struct {
	normalizer     *Normalizer
	maxConcurrency int
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

// New creates a new Converter.
//
// PARAMETERS:
//   - cfg: The ingest configuration (concurrency, CSV settings).
//   - logger: The logger to report per-file outcomes to.
//   - m: The metrics to record into. May be nil.
func New(cfg config.IngestConfig, logger *slog.Logger, m *metrics.Metrics) *Converter {
	limit := cfg.MaxConcurrency
	if limit < 1 {
		limit = 1
	}
	return &Converter{
		normalizer:     NewNormalizer(cfg.CSV),
		maxConcurrency: limit,
		logger:         logger,
		metrics:        m,
	}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the ingestion pipeline for a batch of files.
//
// RETURNS:
//   - A Result describing every file and, on success, the canonical table.
func (c *Converter) Run(ctx context.Context, sources []Source) *Result {
	startTime := time.Now()
	result := &Result{}

	// =========================================================================
	// STEP 1: NORMALIZE FILES
	// =========================================================================

	tables, files, err := c.normalizeAll(ctx, sources)
	result.Files = files
	if err != nil {
		return c.fail(result, err)
	}

	// =========================================================================
	// STEP 2: CHECK FOR READ FAILURES
	// =========================================================================

	var readErrs []error
	var accepted []*types.RawTable
	for i, f := range files {
		switch f.Outcome {
		case OutcomeFailed:
			readErrs = append(readErrs, f.Error)
		case OutcomeAccepted:
			accepted = append(accepted, tables[i])
		}
	}

	if len(readErrs) > 0 {
		return c.fail(result, fmt.Errorf("processing stopped due to errors: %w", errors.Join(readErrs...)))
	}

	// =========================================================================
	// STEP 3: MERGE
	// =========================================================================

	combined, err := Merge(accepted)
	if err != nil {
		return c.fail(result, err)
	}

	c.logger.Info("files merged",
		slog.Int("files", len(accepted)),
		slog.Int("rows", len(combined.Rows)))

	// =========================================================================
	// STEP 4: RENAME AND PROJECT
	// =========================================================================

	canonical, err := Project(Rename(combined))
	if err != nil {
		return c.fail(result, err)
	}

	result.Canonical = canonical
	result.Stats.FilesAccepted = len(accepted)
	result.Stats.RowsMerged = canonical.Len()
	result.Stats.ProcessingTime = time.Since(startTime)
	c.metrics.BatchFinished("ready")

	c.logger.Info("canonical table ready",
		slog.Int("rows", canonical.Len()),
		slog.Duration("elapsed", result.Stats.ProcessingTime))

	return result
}

// normalizeAll normalizes every source with bounded parallelism. Results are
// returned in upload order regardless of completion order.
func (c *Converter) normalizeAll(ctx context.Context, sources []Source) ([]*types.RawTable, []FileResult, error) {
	tables := make([]*types.RawTable, len(sources))
	files := make([]FileResult, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrency)

	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			table, err := c.normalizer.Normalize(src)
			tables[i] = table
			files[i] = c.classify(src.Name, table, err)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, files, err
	}
	return tables, files, nil
}

// classify turns a normalizer result into a FileResult and reports it.
func (c *Converter) classify(name string, table *types.RawTable, err error) FileResult {
	res := FileResult{FilePath: name, Error: err}

	var readErr *FileReadError
	switch {
	case err == nil:
		res.Outcome = OutcomeAccepted
		res.Rows = len(table.Rows)
		c.logger.Debug("file accepted", slog.String("file", name), slog.Int("rows", res.Rows))
	case errors.Is(err, ErrSkippedFile):
		res.Outcome = OutcomeSkipped
		res.Message = fmt.Sprintf("File '%s' is missing one or more expected columns (%s). Skipping this file.",
			name, strings.Join(types.RequiredOriginalColumns, ", "))
		c.logger.Warn("file skipped", slog.String("file", name), slog.String("reason", err.Error()))
	case errors.Is(err, ErrEmptyFile):
		res.Outcome = OutcomeEmpty
		res.Message = fmt.Sprintf("No data found in '%s' after skipping the first row.", name)
		c.logger.Warn("file empty", slog.String("file", name))
	case errors.As(err, &readErr):
		res.Outcome = OutcomeFailed
		res.Message = readErr.Error()
		c.logger.Error("file unreadable", slog.String("file", name), slog.String("error", readErr.Err.Error()))
	default:
		res.Outcome = OutcomeFailed
		res.Message = fmt.Sprintf("error processing file '%s': %v", name, err)
		c.logger.Error("file failed", slog.String("file", name), slog.String("error", err.Error()))
	}

	c.metrics.FileIngested(string(res.Outcome))
	return res
}

// fail records a batch-level error on the result.
func (c *Converter) fail(result *Result, err error) *Result {
	result.Err = err
	result.Canonical = nil
	c.metrics.BatchFinished("failed")
	c.logger.Error("batch failed", slog.String("error", err.Error()))
	return result
}
