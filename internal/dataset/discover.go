package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// ListImages returns paths to the regular, non-hidden files directly beneath
// dir in lexical order. Subdirectories are not descended into.
//
// Unlike Unpack, it does not filter by extension: every listed file is
// expected to carry a label, so a stray README makes ExtractLabels fail.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// CheckMissing returns the paths that no longer exist on disk. It is an
// advisory pass; callers log the result and carry on.
func CheckMissing(paths []string) []string {
	var missing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, p)
		}
	}
	return missing
}

func isImageName(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}
