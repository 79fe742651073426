// =============================================================================
// Grade Summary - Summarize Command
// =============================================================================
//
// This file defines the 'summarize' command, which runs one batch of
// registrar exports through the whole pipeline without a server.
//
// COMMAND USAGE:
//   gradesum summarize [files...] [flags]
//
// FLAGS:
//   --input-dir   : Also read every .xlsx/.csv file of this directory
//   --period      : Period to include (repeatable)
//   --course      : Course to include in the cohort summary (repeatable)
//   --output-dir  : Where the summary workbooks are written
//   --dry-run     : Print everything but write no files
//
// PROCESSING PIPELINE:
//   1. Collect the input files (arguments first, then --input-dir)
//   2. Ingest them as one batch and print the per-file outcome
//   3. Print the available periods; stop here if none were selected
//   4. Print the course summary and the available courses
//   5. Print the cohort summary if courses were selected
//   6. Write the summary workbooks and a run summary
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/gradesum/internal/config"
	"github.com/ginjaninja78/gradesum/internal/converter"
	"github.com/ginjaninja78/gradesum/internal/session"
	"github.com/ginjaninja78/gradesum/internal/types"
	"github.com/ginjaninja78/gradesum/pkg/utils"
)

// summarizeOptions holds the flags of the summarize command.
type summarizeOptions struct {
	Files     []string
	InputDir  string
	Periods   []string
	Courses   []string
	OutputDir string
	DryRun    bool
}

var summarizeOpts summarizeOptions

// summarizeCmd represents the 'summarize' command.
var summarizeCmd = &cobra.Command{
	Use:   "summarize [files...]",
	Short: "Summarize grade exports by course and enrollment cohort",
	Long: `The summarize command ingests a batch of registrar grade exports and prints
the course summary for the selected periods and the cohort summary for the
selected courses.

Files missing a required column, or with no data rows, are reported and left
out. A file that cannot be read at all stops the whole batch.

Both summaries are written as XLSX workbooks to the output directory unless
--dry-run is given.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		opts := summarizeOpts
		opts.Files = append(append([]string{}, args...), opts.Files...)
		if opts.OutputDir == "" {
			opts.OutputDir = appConfig.Export.OutputDir
		}
		return runSummarize(cmd.Context(), cmd.OutOrStdout(), opts, appConfig, logger)
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)

	summarizeCmd.Flags().StringVar(&summarizeOpts.InputDir, "input-dir", "", "Directory to read .xlsx/.csv exports from")
	summarizeCmd.Flags().StringArrayVar(&summarizeOpts.Periods, "period", nil, "Period to include (repeatable)")
	summarizeCmd.Flags().StringArrayVar(&summarizeOpts.Courses, "course", nil, "Course to include in the cohort summary (repeatable)")
	summarizeCmd.Flags().StringVar(&summarizeOpts.OutputDir, "output-dir", "", "Directory for the summary workbooks (default from config)")
	summarizeCmd.Flags().BoolVar(&summarizeOpts.DryRun, "dry-run", false, "Print the summaries without writing any files")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runSummarize runs the summarize pipeline and writes its report to out.
func runSummarize(ctx context.Context, out io.Writer, opts summarizeOptions, cfg *config.Config, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	startTime := time.Now()
	fm := utils.NewFileManager(opts.InputDir, opts.OutputDir)

	// =========================================================================
	// STEP 1: COLLECT INPUT FILES
	// =========================================================================

	paths := opts.Files
	if opts.InputDir != "" {
		found, err := fm.DiscoverInputFiles()
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return errors.New("no input files: pass file paths or --input-dir")
	}

	// =========================================================================
	// STEP 2: INGEST
	// =========================================================================

	fmt.Fprintln(out, "=== Grade Summary ===")
	fmt.Fprintf(out, "Reading %d file(s)...\n", len(paths))

	sources := make([]converter.Source, len(paths))
	for i, p := range paths {
		sources[i] = converter.FileSource(p)
	}

	conv := converter.New(cfg.Ingest, logger, nil)
	sess := session.New("cli", conv, logger, nil)
	result := sess.Ingest(ctx, sources)

	printFileResults(out, result.Files)

	report := utils.RunSummary{StartTime: startTime}
	for _, f := range result.Files {
		report.Files = append(report.Files, utils.FileReport{
			Name:    f.FilePath,
			Outcome: string(f.Outcome),
			Rows:    f.Rows,
			Message: f.Message,
		})
	}

	if result.Err != nil {
		return fmt.Errorf("no summaries produced: %w", result.Err)
	}
	report.Rows = result.Canonical.Len()
	fmt.Fprintf(out, "Canonical table: %d row(s) from %d file(s)\n", report.Rows, result.Stats.FilesAccepted)

	// =========================================================================
	// STEP 3: PERIODS
	// =========================================================================

	periods, err := sess.PeriodOptions()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nAvailable periods: %s\n", formatOptions(periods))

	if err := sess.SelectPeriods(opts.Periods); err != nil {
		return fmt.Errorf("invalid --period: %w", err)
	}

	// =========================================================================
	// STEP 4: COURSE SUMMARY
	// =========================================================================

	courseView, err := sess.CourseView()
	if err != nil {
		return err
	}
	printView(out, "Summary by course", courseView, "select one or more periods with --period")
	if courseView.State == session.ViewAwaiting {
		return finishRun(out, fm, opts, report, nil)
	}

	courses, err := sess.CourseOptions()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nAvailable courses: %s\n", formatOptions(courses))

	if err := sess.SelectCourses(opts.Courses); err != nil {
		return fmt.Errorf("invalid --course: %w", err)
	}

	// =========================================================================
	// STEP 5: COHORT SUMMARY
	// =========================================================================

	cohortView, err := sess.CohortView()
	if err != nil {
		return err
	}
	printView(out, "Summary by enrollment year (filtered)", cohortView, "select one or more courses with --course")

	// =========================================================================
	// STEP 6: EXPORT
	// =========================================================================

	levels := []session.Level{session.LevelCourse}
	if cohortView.State == session.ViewReady {
		levels = append(levels, session.LevelCohort)
	}
	return finishRun(out, fm, opts, report, func() ([]string, error) {
		return exportLevels(sess, fm, levels)
	})
}

// exportLevels writes the workbook of every ready level.
func exportLevels(sess *session.Session, fm *utils.FileManager, levels []session.Level) ([]string, error) {
	var written []string
	for _, level := range levels {
		data, name, err := sess.Export(level)
		if errors.Is(err, session.ErrNothingToExport) {
			continue
		}
		if err != nil {
			return written, err
		}
		path, err := fm.WriteExport(name, data)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// finishRun writes the exports and the run summary unless this is a dry run.
func finishRun(out io.Writer, fm *utils.FileManager, opts summarizeOptions, report utils.RunSummary, export func() ([]string, error)) error {
	if opts.DryRun {
		fmt.Fprintln(out, "\nDry run: no files written.")
		return nil
	}

	if export != nil {
		written, err := export()
		report.Exports = written
		if err != nil {
			return fmt.Errorf("failed to write exports: %w", err)
		}
		for _, p := range written {
			fmt.Fprintf(out, "  ✓ wrote %s\n", p)
		}
	}

	report.EndTime = time.Now()
	path, err := fm.WriteSummaryLog(report)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nRun summary written to %s\n", path)
	return nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printFileResults(out io.Writer, files []converter.FileResult) {
	for _, f := range files {
		switch f.Outcome {
		case converter.OutcomeAccepted:
			fmt.Fprintf(out, "  ✓ %s (%d rows)\n", f.FilePath, f.Rows)
		case converter.OutcomeFailed:
			fmt.Fprintf(out, "  ✗ %s\n", f.Message)
		default:
			fmt.Fprintf(out, "  ! %s\n", f.Message)
		}
	}
}

func printView(out io.Writer, title string, view session.View, hint string) {
	fmt.Fprintf(out, "\n--- %s ---\n", title)

	switch view.State {
	case session.ViewAwaiting:
		fmt.Fprintf(out, "Awaiting selection: %s.\n", hint)
		return
	case session.ViewEmpty:
		fmt.Fprintln(out, "No rows match the current selection.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(view.Summary.Columns(), "\t"))
	for _, row := range view.Summary.Rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", displayKey(row), row.Enrolled, row.Participated, row.Passed)
	}
	tw.Flush()
}

func displayKey(row types.SummaryRow) string {
	if row.Key == "" {
		return "(blank)"
	}
	return row.Key
}

func formatOptions(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}
