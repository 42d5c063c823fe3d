package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stagehand-io/stagehand/pkg/scan"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stagehand",
	Short: "Stagehand - location-aware data staging for workflow tasks",
	Long: `Stagehand records where workflow task files physically live and keeps a
remote scheduler's location index up to date.

The scan subcommand runs inside task wrappers: it stats a task's staged
inputs or produced outputs, resolves symbolic links into node-local
scratch, and writes the manifest the workflow engine feeds back to the
scheduler.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Stagehand version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan <short|long> <output_manifest> <local_root> <dir>...",
	Short: "Scan task directories into a manifest",
	Long: `Scan walks one or more directories below the node-local scratch root and
writes one manifest row per entry: path, existence, resolved link target,
size, type and timestamps. Symbolic links pointing at directories under
the local root are descended into, with the emitted paths rewritten under
the link source.

The short mode prepends a wall-clock header and omits the timestamp
columns.`,
	Args: cobra.MinimumNArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := scan.ParseMode(args[0])
		if err != nil {
			return err
		}
		outPath := args[1]
		localRoot := args[2]
		dirs := args[3:]

		out, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("error opening the file %s: %w", outPath, err)
		}
		defer out.Close()

		scanner := &scan.Scanner{LocalRoot: localRoot, Mode: mode}
		if err := scanner.Run(out, dirs); err != nil {
			return err
		}
		return out.Close()
	},
	SilenceUsage: true,
}
