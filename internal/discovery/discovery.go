// Package discovery expands CLI input arguments (files or directories) into
// a list of media files for the coordinator to open.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bournex/gpudecode/internal/util"
)

// FindMediaFiles resolves argv[1..N] into a flat list of media files, in
// argument order. A path that names a file directly is kept as-is, even if
// its extension isn't recognised (mediasource opens every path without an
// elementary-stream extension as a container); a directory is expanded to
// its recognised media files, non-recursively, sorted case-insensitively by
// name, matching the teacher's FindVideoFiles.
func FindMediaFiles(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("input path does not exist: %s", arg)
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		files, err := findInDir(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}
	return out, nil
}

func findInDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(dir, name)
		if util.IsMediaFile(full) {
			files = append(files, full)
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(filepath.Base(files[i])) < strings.ToLower(filepath.Base(files[j]))
	})
	return files, nil
}
