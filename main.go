// =============================================================================
// Grade Summary - Main Entry Point
// =============================================================================
//
// USAGE:
//   gradesum summarize  - Summarize grade exports from the command line
//   gradesum serve      - Run the HTTP session API
//   gradesum version    - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : ingestion, aggregation, export, sessions and HTTP API
//   - pkg/       : shared file system utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/gradesum/cmd"
)

func main() {
	cmd.Execute()
}
