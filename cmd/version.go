// =============================================================================
// Grade Summary - Version Command
// =============================================================================
//
// COMMAND USAGE:
//   gradesum version
//
// OUTPUT:
//   Grade Summary
//   Version:    1.0.0
//   Build Date: 2024-01-01
//   Go Version: go1.24.0
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version and BuildDate are set at build time:
//   go build -ldflags "-X 'github.com/ginjaninja78/gradesum/cmd.Version=1.0.0'"
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
)

// versionCmd represents the 'version' command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Long:  `Display the application version, build date, and Go runtime version.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Grade Summary")
		fmt.Fprintf(out, "Version:    %s\n", Version)
		fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
		fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
