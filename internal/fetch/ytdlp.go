package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WatchURL is the prefix AudioSet source ids are resolved against
const WatchURL = "https://www.youtube.com/watch?v="

// VideoInfo is the subset of `yt-dlp -J` output we use
type VideoInfo struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Ext      string  `json:"ext"`
}

// YTDLP wraps the yt-dlp executable
type YTDLP struct {
	binary  string
	cookies string
	run     Runner
}

// NewYTDLP creates a client. cookiesPath may be empty.
func NewYTDLP(cookiesPath string, run Runner) (*YTDLP, error) {
	cookies, err := resolveCookiesPath(cookiesPath)
	if err != nil {
		return nil, err
	}
	if run == nil {
		run = execRunner
	}
	return &YTDLP{binary: "yt-dlp", cookies: cookies, run: run}, nil
}

func (y *YTDLP) baseArgs() []string {
	args := []string{"--no-playlist", "--quiet", "--no-warnings"}
	if y.cookies != "" {
		args = append(args, "--cookies", y.cookies)
	}
	return args
}

// Probe fetches video metadata without downloading media
func (y *YTDLP) Probe(ctx context.Context, sourceID string) (*VideoInfo, error) {
	args := append(y.baseArgs(), "-J", WatchURL+sourceID)
	out, err := y.run(ctx, y.binary, args...)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("yt-dlp returned empty output")
	}

	var info VideoInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("parse yt-dlp info: %w", err)
	}
	return &info, nil
}

// DownloadAudio downloads the best audio stream into dir and returns the
// path of the new file. dir should be empty.
func (y *YTDLP) DownloadAudio(ctx context.Context, sourceID string, dir string) (string, error) {
	args := append(y.baseArgs(),
		"--restrict-filenames",
		"-f", "bestaudio/best",
		"-P", dir,
		"-o", "%(title).80B-%(id)s.%(ext)s",
		WatchURL+sourceID,
	)
	if _, err := y.run(ctx, y.binary, args...); err != nil {
		return "", err
	}
	return findDownloaded(dir)
}

// findDownloaded returns the single finished file yt-dlp left in dir
func findDownloaded(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") || strings.HasPrefix(name, ".") {
			continue
		}
		return filepath.Join(dir, name), nil
	}
	return "", errors.New("yt-dlp finished but produced no file")
}

func resolveCookiesPath(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return "", nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve cookies path %s: %w", p, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("cookies file %s: %w", abs, err)
	}
	return abs, nil
}
