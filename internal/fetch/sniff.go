package fetch

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// SniffContainer names the container of a downloaded file. Files the tag
// library recognises report their detected type; anything else (webm, opus)
// falls back to the extension.
func SniffContainer(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	f, err := os.Open(path)
	if err != nil {
		return ext
	}
	defer f.Close()

	_, fileType, err := tag.Identify(f)
	if err != nil || fileType == tag.UnknownFileType {
		return ext
	}
	return strings.ToLower(string(fileType))
}
