package main

import (
	"fmt"
	"strings"

	"github.com/franz/audioset-prep/internal/ontology"
	"github.com/franz/audioset-prep/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "Select suitable classes from the AudioSet ontology",
	Long: `Filter the AudioSet ontology down to the classes worth downloading.

A class is kept when:
- it is a leaf of the hierarchy (unless classes.leafs is false)
- it is not blacklisted by AudioSet
- its estimated label quality meets classes.quality_threshold

The ordered selection is written to classes.file and drives 'asp download'.
With --sweep, the number of classes at each threshold from 0 to 1 is
printed instead.`,
	RunE: runClasses,
}

func init() {
	rootCmd.AddCommand(classesCmd)

	classesCmd.Flags().Float64("quality", 0.7, "Minimum quality estimate (0-1)")
	classesCmd.Flags().Bool("leafs", true, "Only consider leaf classes")
	classesCmd.Flags().Bool("sweep", false, "Print class counts per quality threshold and exit")

	viper.BindPFlag("classes.quality_threshold", classesCmd.Flags().Lookup("quality"))
	viper.BindPFlag("classes.leafs", classesCmd.Flags().Lookup("leafs"))
}

func runClasses(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	nodes, err := ontology.LoadOntology(cfg.metaPath(ontologyFile))
	if err != nil {
		return err
	}
	quality, err := ontology.LoadQuality(cfg.metaPath(qualityFile))
	if err != nil {
		return err
	}
	labels, err := ontology.LoadLabels(cfg.metaPath(labelsFile))
	if err != nil {
		return err
	}
	util.DebugLog("Ontology: %d nodes, %d quality estimates, %d labels", len(nodes), len(quality), len(labels))

	if sweep, _ := cmd.Flags().GetBool("sweep"); sweep {
		printSweep(ontology.Sweep(nodes, quality, labels, cfg.LeafOnly), cfg.LeafOnly)
		return nil
	}

	logger := openEvents(cfg.Artifacts)
	defer logger.Close()

	classes := ontology.Select(nodes, quality, labels, ontology.Criteria{
		QualityThreshold: cfg.Quality,
		LeafOnly:         cfg.LeafOnly,
	})
	if err := ontology.WriteClassList(cfg.ClassFile, classes); err != nil {
		return fmt.Errorf("failed to write class list: %w", err)
	}
	logger.LogClasses(cfg.ClassFile, len(classes), cfg.Quality, cfg.LeafOnly)

	util.SuccessLog("%d suitable classes found in AudioSet using passed parameters", len(classes))
	util.InfoLog("Class list: %s", cfg.ClassFile)
	return nil
}

func printSweep(points []ontology.SweepPoint, leafOnly bool) {
	kind := "classes"
	if leafOnly {
		kind = "leaf classes"
	}
	fmt.Printf("\n=== Available %s per quality threshold ===\n", kind)

	peak := 1
	for _, p := range points {
		if p.Count > peak {
			peak = p.Count
		}
	}
	for _, p := range points {
		bar := strings.Repeat("#", p.Count*40/peak)
		fmt.Printf("  %.2f  %5d  %s\n", p.Threshold, p.Count, bar)
	}
	fmt.Println()
}
