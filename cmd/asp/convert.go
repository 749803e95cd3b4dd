package main

import (
	"fmt"
	"time"

	"github.com/franz/audioset-prep/internal/dataset"
	"github.com/franz/audioset-prep/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert the WAV dataset into mono 16 kHz .npy arrays",
	Long: `Mirror the WAV tree (post.wav_root) as NumPy arrays (post.array_root).

Each file is decoded to mono float32 at post.sample_rate; files at another
rate or channel count are resampled with ffmpeg first. Top-level split
folders listed in post.skip (default: Other) are ignored. Existing arrays
are left alone, so the command can be re-run after an interruption.`,
	RunE: runConvert,
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalise every array to zero mean and unit variance",
	Long: `Mirror the array tree (post.array_root) into post.norm_root with each
sample scaled to mean 0 and standard deviation 1.

Arrays with zero variance, or whose length is not exactly 160000 samples
(10 seconds at 16 kHz), are reported and not written.`,
	RunE: runNormalize,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(normalizeCmd)

	convertCmd.Flags().String("src", "", "WAV tree (default: post.wav_root)")
	convertCmd.Flags().String("dst", "", "Array tree (default: post.array_root)")
	convertCmd.Flags().Int("workers", 0, "Parallel files (default: number of CPUs)")
	viper.BindPFlag("post.wav_root", convertCmd.Flags().Lookup("src"))
	viper.BindPFlag("post.array_root", convertCmd.Flags().Lookup("dst"))

	normalizeCmd.Flags().String("src", "", "Array tree (default: post.array_root)")
	normalizeCmd.Flags().String("dst", "", "Normalised tree (default: post.norm_root)")
	normalizeCmd.Flags().Int("workers", 0, "Parallel files (default: number of CPUs)")
	normalizeCmd.Flags().Int("length", dataset.ExpectedLength, "Required samples per array")
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	applyLogFlags()

	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	workers, _ := cmd.Flags().GetInt("workers")

	opts := dataset.ConvertOptions{
		Src:        GetConfigString("post.wav_root", "AudioSet_meta_split_raw_wav"),
		Dst:        GetConfigString("post.array_root", "AudioSet_meta_split_raw_array"),
		SampleRate: GetConfigInt("post.sample_rate", dataset.DefaultSampleRate),
		Skip:       viper.GetStringSlice("post.skip"),
		Workers:    workers,
	}

	logger := openEvents(cfg.Artifacts)
	defer logger.Close()
	opts.Events = logger

	util.InfoLog("=== Converting WAV to NPY ===")
	util.InfoLog("Source: %s", opts.Src)
	util.InfoLog("Destination: %s", opts.Dst)

	start := time.Now()
	res, err := dataset.Convert(ctx, opts)
	if res == nil {
		return fmt.Errorf("convert failed: %w", err)
	}

	util.SuccessLog("Conversion finished in %v", time.Since(start).Round(time.Millisecond))
	util.InfoLog("  Converted: %d (%d resampled)", res.Converted, res.Resampled)
	util.InfoLog("  Already present: %d", res.Skipped)
	if res.Failed > 0 {
		util.WarnLog("  Failed: %d", res.Failed)
	}
	return err
}

func runNormalize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	applyLogFlags()

	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	workers, _ := cmd.Flags().GetInt("workers")
	length, _ := cmd.Flags().GetInt("length")

	src, _ := cmd.Flags().GetString("src")
	if src == "" {
		src = GetConfigString("post.array_root", "AudioSet_meta_split_raw_array")
	}
	dst, _ := cmd.Flags().GetString("dst")
	if dst == "" {
		dst = GetConfigString("post.norm_root", "AudioSet_meta_split_raw_array_norm")
	}

	logger := openEvents(cfg.Artifacts)
	defer logger.Close()

	util.InfoLog("=== Normalising Arrays ===")
	util.InfoLog("Source: %s", src)
	util.InfoLog("Destination: %s", dst)

	start := time.Now()
	res, err := dataset.Normalize(ctx, dataset.NormalizeOptions{
		Src:     src,
		Dst:     dst,
		Length:  length,
		Workers: workers,
		Events:  logger,
	})
	if res == nil {
		return fmt.Errorf("normalize failed: %w", err)
	}

	util.SuccessLog("Normalisation finished in %v", time.Since(start).Round(time.Millisecond))
	util.InfoLog("  Normalised: %d", res.Normalized)
	util.InfoLog("  Already present: %d", res.Skipped)
	if res.Rejected > 0 {
		util.WarnLog("  Not saved (std=0 or wrong length): %d", res.Rejected)
	}
	if res.Failed > 0 {
		util.WarnLog("  Failed: %d", res.Failed)
	}
	return err
}
