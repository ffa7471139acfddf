package queue

import (
	"os"
	"path/filepath"
	"strings"
)

// IngestibleFile is one enqueueable document found on disk.
type IngestibleFile struct {
	Path   string
	Source string
}

// ScanIngestible lists the supported document files directly under dir.
func ScanIngestible(dir string) ([]IngestibleFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []IngestibleFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".csv", ".xlsx", ".pdf":
			out = append(out, IngestibleFile{
				Path:   filepath.Join(dir, entry.Name()),
				Source: entry.Name(),
			})
		}
	}
	return out, nil
}
