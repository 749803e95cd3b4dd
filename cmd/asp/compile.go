package main

import (
	"fmt"
	"time"

	"github.com/franz/audioset-prep/internal/metadata"
	"github.com/franz/audioset-prep/internal/util"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile the AudioSet segment lists into one metadata table",
	Long: `Concatenate the AudioSet segment CSVs found in the meta folder
(balanced, unbalanced 0-2 and eval) into a single table with one row per
segment: source_id, clip_start, clip_end and one column per label.

The table is written to dir.df_file, inside the meta folder unless the path
is absolute. An existing table is kept unless --force is given.`,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().Bool("force", false, "Rebuild the table even if it exists")
	compileCmd.Flags().StringSlice("sources", nil, "Segment lists to read (default: the five AudioSet lists)")
}

func runCompile(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")
	sources, _ := cmd.Flags().GetStringSlice("sources")

	logger := openEvents(cfg.Artifacts)
	defer logger.Close()

	util.InfoLog("=== Compiling Metadata ===")
	util.InfoLog("Meta folder: %s", cfg.MetaDir)

	start := time.Now()
	res, err := metadata.Compile(metadata.CompileOptions{
		MetaDir: cfg.MetaDir,
		Sources: sources,
		Dest:    cfg.TableFile,
		Force:   force,
		Events:  logger,
	})
	if err != nil {
		return fmt.Errorf("compile failed: %w", err)
	}
	if res.Reused {
		util.InfoLog("Use --force to rebuild %s", res.Dest)
		return nil
	}

	util.SuccessLog("Compiled %d segments into %s in %v", res.Rows, res.Dest, time.Since(start).Round(time.Millisecond))
	if res.Skipped > 0 {
		util.WarnLog("  Malformed rows skipped: %d", res.Skipped)
	}
	util.InfoLog("")
	util.InfoLog("Next step: asp classes")
	return nil
}
