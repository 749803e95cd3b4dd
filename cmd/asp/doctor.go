package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/franz/audioset-prep/internal/store"
	"github.com/franz/audioset-prep/internal/util"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure asp can operate correctly.

This command checks:
- Required tools (yt-dlp, ffmpeg)
- Optional tools (ffprobe, used when yt-dlp reports no duration)
- AudioSet metadata files in the meta folder
- Compiled metadata table and class list
- Cookies file, when configured
- Dataset root permissions and disk space
- Database accessibility and integrity

Use this command to troubleshoot issues before running a download.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	util.InfoLog("=== ASP Doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{
		checkTool("yt-dlp", true, "--version"),
		checkTool("ffmpeg", true, "-version"),
		checkTool("ffprobe", false, "-version"),
		checkSQLite(),
		checkDatabase(cfg.DBPath),
		checkSourceDirectory(cfg.MetaDir),
	}

	for _, name := range []string{ontologyFile, qualityFile, labelsFile} {
		results = append(results, checkInput(cfg.metaPath(name), name, "asp classes"))
	}
	results = append(results,
		checkInput(cfg.TableFile, "Compiled metadata", "asp compile"),
		checkInput(cfg.ClassFile, "Class list", "asp classes"),
	)
	if cfg.CookiePath != "" {
		results = append(results, checkCookies(cfg.CookiePath))
	}
	results = append(results,
		checkDestinationDirectory(cfg.DatasetRoot),
		checkDiskSpace(cfg.DatasetRoot, "dataset root"),
	)

	// Print results
	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	// Summary
	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed. Please resolve errors before running asp.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("✅ All checks passed! System is ready for asp operations.")
	}

	return nil
}

// checkTool runs `name versionArg` and reports the version. A missing
// required tool is an error, a missing optional one a warning.
func checkTool(name string, required bool, versionArg string) checkResult {
	label := name
	if !required {
		label += " (optional)"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, name, versionArg).CombinedOutput()
	if err != nil {
		return checkResult{
			name:    label,
			error:   required,
			warning: !required,
			message: "not found or not executable",
		}
	}

	return checkResult{
		name:    label,
		message: fmt.Sprintf("version %s", parseVersion(name, string(output))),
	}
}

// parseVersion handles both "ffmpeg version 6.1 Copyright..." and a bare
// "2024.08.06" as printed by yt-dlp
func parseVersion(name, output string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	parts := strings.Fields(first)
	switch {
	case len(parts) >= 3 && parts[0] == name && parts[1] == "version":
		return parts[2]
	case len(parts) >= 1:
		return parts[0]
	}
	return "unknown"
}

// checkSQLite verifies SQLite version
func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies database file accessibility
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Database",
			warning: true,
			message: "no database path specified (use --db flag or config)",
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Database",
				message: fmt.Sprintf("%s (will be created on first run)", dbPath),
			}
		}
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	classes, _ := db.GetAllClassProgress()
	size := util.FormatBytes(info.Size())

	return checkResult{
		name:    "Database",
		message: fmt.Sprintf("%s (%s, %d classes tracked)", dbPath, size, len(classes)),
	}
}

// checkSourceDirectory verifies a directory is readable
func checkSourceDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		return checkResult{
			name:    "Meta folder",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    "Meta folder",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return checkResult{
			name:    "Meta folder",
			error:   true,
			message: fmt.Sprintf("cannot read %s: %v", path, err),
		}
	}

	return checkResult{
		name:    "Meta folder",
		message: fmt.Sprintf("%s (%d entries)", path, len(entries)),
	}
}

// checkInput reports a missing pipeline input as a warning naming the step
// that produces or needs it
func checkInput(path, what, step string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		return checkResult{
			name:    what,
			warning: true,
			message: fmt.Sprintf("%s not found (needed by %s)", path, step),
		}
	}
	return checkResult{
		name:    what,
		message: fmt.Sprintf("%s (%s)", path, util.FormatBytes(info.Size())),
	}
}

// checkCookies verifies a configured cookies file exists
func checkCookies(path string) checkResult {
	if !util.FileExists(path) {
		return checkResult{
			name:    "Cookies file",
			error:   true,
			message: fmt.Sprintf("%s not found (set dir.cookie_path to None to disable)", path),
		}
	}
	return checkResult{name: "Cookies file", message: path}
}

// checkDestinationDirectory verifies destination directory is writable
func checkDestinationDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(path, 0755); err != nil {
				return checkResult{
					name:    "Dataset root",
					error:   true,
					message: fmt.Sprintf("cannot create %s: %v", path, err),
				}
			}
			return checkResult{
				name:    "Dataset root",
				message: fmt.Sprintf("%s (created)", path),
			}
		}
		return checkResult{
			name:    "Dataset root",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    "Dataset root",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	testFile := filepath.Join(path, ".asp_write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{
			name:    "Dataset root",
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", path, err),
		}
	}
	f.Close()
	os.Remove(testFile)

	return checkResult{
		name:    "Dataset root",
		message: fmt.Sprintf("%s (writable)", path),
	}
}

// checkDiskSpace verifies available disk space
func checkDiskSpace(path string, label string) checkResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{
			name:    fmt.Sprintf("Disk space (%s)", label),
			warning: true,
			message: fmt.Sprintf("cannot determine disk space: %v", err),
		}
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	totalBytes := stat.Blocks * uint64(stat.Bsize)
	usedBytes := totalBytes - (stat.Bfree * uint64(stat.Bsize))

	usedPercent := float64(usedBytes) / float64(totalBytes) * 100

	// Warn if less than 10GB available or >90% used
	warning := false
	warningMsg := ""
	if availBytes < 10<<30 {
		warning = true
		warningMsg = " (low space!)"
	} else if usedPercent > 90 {
		warning = true
		warningMsg = " (>90% used)"
	}

	return checkResult{
		name:    fmt.Sprintf("Disk space (%s)", label),
		warning: warning,
		message: fmt.Sprintf("%s available%s", util.FormatBytes(int64(availBytes)), warningMsg),
	}
}
