package main

import (
	"fmt"
	"path/filepath"

	"github.com/franz/audioset-prep/internal/report"
	"github.com/franz/audioset-prep/internal/util"
	"github.com/spf13/viper"
)

// Files expected inside dir.meta_folder
const (
	ontologyFile = "ontology.json"
	qualityFile  = "qa_true_counts.csv"
	labelsFile   = "class_labels_indices.csv"
)

func setDefaults() {
	viper.SetDefault("dir.meta_folder", "MetaData")
	viper.SetDefault("dir.df_file", "big_data.csv")
	viper.SetDefault("dir.cookie_path", "None")
	viper.SetDefault("dir.dataset_root", "AudioSet_Data")
	viper.SetDefault("data.max_per_class", "None")
	viper.SetDefault("data.start_index", 0)
	viper.SetDefault("data.end_index", "None")
	viper.SetDefault("classes.leafs", true)
	viper.SetDefault("classes.quality_threshold", 0.7)
	viper.SetDefault("classes.file", "suitable_classes.csv")
	viper.SetDefault("post.wav_root", "AudioSet_meta_split_raw_wav")
	viper.SetDefault("post.array_root", "AudioSet_meta_split_raw_array")
	viper.SetDefault("post.norm_root", "AudioSet_meta_split_raw_array_norm")
	viper.SetDefault("post.sample_rate", 16000)
	viper.SetDefault("post.skip", []string{"Other"})
	viper.SetDefault("seed", 42)
	viper.SetDefault("artifacts", "artifacts")
	viper.SetDefault("events.level", "info")
}

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (ASP_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	val := viper.GetInt(key)
	if val == 0 {
		return defaultValue
	}
	return val
}

// settings is the resolved control configuration
type settings struct {
	MetaDir     string
	TableFile   string // relative paths are inside MetaDir
	CookiePath  string // "" = no cookies
	DatasetRoot string
	MaxPerClass int // -1 = every available candidate
	StartIndex  int
	EndIndex    int
	EndSet      bool
	LeafOnly    bool
	Quality     float64
	ClassFile   string
	Seed        uint64
	DBPath      string
	Artifacts   string
}

func loadSettings() (*settings, error) {
	s := &settings{
		MetaDir:     GetConfigString("dir.meta_folder", "MetaData"),
		TableFile:   GetConfigString("dir.df_file", "big_data.csv"),
		CookiePath:  util.OptionalString(viper.GetString("dir.cookie_path")),
		DatasetRoot: GetConfigString("dir.dataset_root", "AudioSet_Data"),
		StartIndex:  viper.GetInt("data.start_index"),
		LeafOnly:    viper.GetBool("classes.leafs"),
		Quality:     viper.GetFloat64("classes.quality_threshold"),
		ClassFile:   GetConfigString("classes.file", "suitable_classes.csv"),
		Seed:        viper.GetUint64("seed"),
		DBPath:      GetConfigString("db", "asp-state.db"),
		Artifacts:   GetConfigString("artifacts", "artifacts"),
	}
	if !filepath.IsAbs(s.TableFile) {
		s.TableFile = s.metaPath(s.TableFile)
	}

	maxPer, set, err := util.ParseOptionalInt(viper.GetString("data.max_per_class"))
	if err != nil {
		return nil, fmt.Errorf("data.max_per_class: %w", err)
	}
	s.MaxPerClass = -1
	if set {
		if maxPer < 0 {
			return nil, fmt.Errorf("%w: data.max_per_class %d is negative", util.ErrInvalidConfig, maxPer)
		}
		s.MaxPerClass = maxPer
	}

	s.EndIndex, s.EndSet, err = util.ParseOptionalInt(viper.GetString("data.end_index"))
	if err != nil {
		return nil, fmt.Errorf("data.end_index: %w", err)
	}

	if s.Quality < 0 || s.Quality > 1 {
		return nil, fmt.Errorf("%w: classes.quality_threshold %.2f outside [0,1]", util.ErrInvalidConfig, s.Quality)
	}
	return s, nil
}

func (s *settings) metaPath(name string) string {
	return filepath.Join(s.MetaDir, name)
}

// eventLevel is the event log filter: events.level, overridden by
// --verbose/--quiet
func eventLevel() report.EventLevel {
	switch {
	case viper.GetBool("quiet"):
		return report.LevelWarning
	case viper.GetBool("verbose"):
		return report.LevelDebug
	}
	return report.ParseLevel(viper.GetString("events.level"))
}

// openEvents opens the JSONL event log, falling back to a null logger
func openEvents(dir string) *report.EventLogger {
	logger, err := report.NewEventLogger(dir, eventLevel())
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}
	if logger.Path() != "" {
		util.InfoLog("Event log: %s", logger.Path())
	}
	return logger
}
