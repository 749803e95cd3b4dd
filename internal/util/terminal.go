package util

import (
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

// IsTerminal checks if the given file descriptor is a terminal
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// ShowProgress reports whether progress bars should be drawn
func ShowProgress() bool {
	return IsTerminal(os.Stdout.Fd()) && !IsQuiet()
}

// FormatBytes formats a byte count for humans (e.g. "1.2 MB")
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.Bytes(uint64(bytes))
}
