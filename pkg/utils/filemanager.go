// =============================================================================
// Grade Summary - File Manager Utility
// =============================================================================
//
// This module provides the file system side of the command line tool:
//   - Discovering registrar exports in an input directory
//   - Writing summary workbooks to the output directory
//   - Writing a plain-text run summary next to them
//
// OUTPUT STRATEGY:
//   - Workbooks are written to a temporary file first and renamed into
//     place, so an interrupted run never leaves a truncated workbook behind
//   - Existing files with the same name are replaced
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// InputExtensions lists the file extensions picked up by DiscoverInputFiles.
var InputExtensions = []string{".xlsx", ".csv"}

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the command line tool.
type FileManager struct {
	// InputDir is the directory scanned for registrar exports.
	InputDir string

	// OutputDir is the directory summary workbooks are written to.
	OutputDir string
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir string) *FileManager {
	return &FileManager{
		InputDir:  inputDir,
		OutputDir: outputDir,
	}
}

// EnsureOutputDir creates the output directory if it doesn't exist.
func (fm *FileManager) EnsureOutputDir() error {
	if err := os.MkdirAll(fm.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", fm.OutputDir, err)
	}
	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the files of the input directory whose extension
// is one of InputExtensions, compared case-insensitively. Subdirectories and
// Office lock files ("~$name.xlsx") are ignored.
//
// RETURNS:
//   - The file paths sorted by name.
//   - An error if the directory cannot be read.
func (fm *FileManager) DiscoverInputFiles() ([]string, error) {
	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var result []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), "~$") {
			continue
		}
		if hasInputExtension(entry.Name()) {
			result = append(result, filepath.Join(fm.InputDir, entry.Name()))
		}
	}

	sort.Strings(result)
	return result, nil
}

func hasInputExtension(name string) bool {
	ext := filepath.Ext(name)
	for _, want := range InputExtensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

// =============================================================================
// OUTPUT FILES
// =============================================================================

// WriteExport writes data to name inside the output directory.
//
// PARAMETERS:
//   - name: The file name. Directory components are not allowed.
//   - data: The file content.
//
// RETURNS:
//   - The path of the written file.
//   - An error if the file could not be written.
func (fm *FileManager) WriteExport(name string, data []byte) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid export file name %q", name)
	}
	if err := fm.EnsureOutputDir(); err != nil {
		return "", err
	}

	target := filepath.Join(fm.OutputDir, name)

	tmp, err := os.CreateTemp(fm.OutputDir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move %s into place: %w", name, err)
	}

	return target, nil
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary contains summary information about one command line run.
type RunSummary struct {
	StartTime time.Time
	EndTime   time.Time
	Rows      int
	Files     []FileReport
	Exports   []string
}

// FileReport describes what happened to one input file.
type FileReport struct {
	Name    string
	Outcome string
	Rows    int
	Message string
}

// WriteSummaryLog writes a run summary to a timestamped text file in the
// output directory and returns its path.
func (fm *FileManager) WriteSummaryLog(summary RunSummary) (string, error) {
	if err := fm.EnsureOutputDir(); err != nil {
		return "", err
	}

	timestamp := summary.EndTime.Format("20060102_150405")
	summaryPath := filepath.Join(fm.OutputDir, fmt.Sprintf("processing_summary_%s.txt", timestamp))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "Grade Summary - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Total Files:    %d\n"+
		"  Canonical Rows: %d\n\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		len(summary.Files),
		summary.Rows)

	if len(summary.Files) > 0 {
		writer.WriteString("Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, f := range summary.Files {
			fmt.Fprintf(writer, "  File:    %s\n", f.Name)
			fmt.Fprintf(writer, "  Outcome: %s\n", f.Outcome)
			fmt.Fprintf(writer, "  Rows:    %d\n", f.Rows)
			if f.Message != "" {
				fmt.Fprintf(writer, "  Message: %s\n", f.Message)
			}
			writer.WriteString("\n")
		}
	}

	if len(summary.Exports) > 0 {
		writer.WriteString("Exports:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, e := range summary.Exports {
			fmt.Fprintf(writer, "  %s\n", e)
		}
		writer.WriteString("\n")
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}
