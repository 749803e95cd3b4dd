package fetch

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/franz/audioset-prep/internal/util"
)

// Runner executes an external program and returns its stdout.
// Tests substitute a fake; production uses execRunner.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%w: %s", util.ErrToolMissing, name)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s failed: %w: %s", name, err, lastLine(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// lastLine keeps error messages short; yt-dlp and ffmpeg put the cause last
func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

// ToolStatus reports whether an executable is on PATH
type ToolStatus struct {
	Name  string
	Found bool
	Path  string
}

// DependencyStatus checks the executables the fetch pipeline shells out to
func DependencyStatus() []ToolStatus {
	var out []ToolStatus
	for _, name := range []string{"yt-dlp", "ffmpeg", "ffprobe"} {
		st := ToolStatus{Name: name}
		if path, err := exec.LookPath(name); err == nil {
			st.Found = true
			st.Path = path
		}
		out = append(out, st)
	}
	return out
}

// CheckDependencies returns ErrToolMissing when yt-dlp or ffmpeg is absent
func CheckDependencies() error {
	for _, st := range DependencyStatus() {
		if st.Name == "ffprobe" {
			continue
		}
		if !st.Found {
			return fmt.Errorf("%w: %s is not installed or not on PATH", util.ErrToolMissing, st.Name)
		}
	}
	return nil
}
