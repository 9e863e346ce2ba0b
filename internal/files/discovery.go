package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"scdash/internal/dataprocessing"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
	Format  dataprocessing.Format
}

// Discovery finds source files in a single directory.
type Discovery struct {
	dir string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(dir string) *Discovery {
	return &Discovery{dir: dir}
}

// FindSourceFiles lists every loadable file in the directory, newest first.
// Excel lock files and empty files are skipped.
func (d *Discovery) FindSourceFiles() ([]FileInfo, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", d.dir, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), "~$") {
			continue
		}
		format, err := dataprocessing.DetectFormat(entry.Name())
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(d.dir, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Format:  format,
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Name < files[j].Name
		}
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files, nil
}

// LatestSource returns the newest source file whose name without extension
// is baseName.
func (d *Discovery) LatestSource(baseName string) (FileInfo, bool) {
	files, err := d.FindSourceFiles()
	if err != nil {
		return FileInfo{}, false
	}
	for _, f := range files {
		if strings.TrimSuffix(f.Name, filepath.Ext(f.Name)) == baseName {
			return f, true
		}
	}
	return FileInfo{}, false
}

// PruneSources removes every source file named baseName except keep and
// returns how many were removed.
func (d *Discovery) PruneSources(baseName, keep string) (int, error) {
	files, err := d.FindSourceFiles()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files {
		if f.Path == keep || strings.TrimSuffix(f.Name, filepath.Ext(f.Name)) != baseName {
			continue
		}
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove %s: %w", f.Path, err)
		}
		removed++
	}
	return removed, nil
}
