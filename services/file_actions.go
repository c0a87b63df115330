package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DocumentFiles keeps uploaded document bytes on disk as "<id>_<filename>"
// so documents can be reindexed later.
type DocumentFiles struct {
	Dir string // absolute path to the documents directory
}

// NewDocumentFiles creates the directory if needed.
func NewDocumentFiles(dir string) (*DocumentFiles, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("could not determine absolute path for %s: %w", dir, err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("could not create documents directory: %w", err)
	}
	return &DocumentFiles{Dir: absPath}, nil
}

// sanitizeFilename ensures the stored file stays within the documents directory.
func (d *DocumentFiles) sanitizeFilename(id, filename string) (string, error) {
	base := filepath.Base(filename)
	if id == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid document name %q", filename)
	}
	// This prevents path traversal (e.g., id = "../../etc")
	cleanPath := filepath.Join(d.Dir, filepath.Base(id+"_"+base))
	if !strings.HasPrefix(cleanPath, d.Dir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid document name, attempts to escape documents directory")
	}
	return cleanPath, nil
}

// Save writes data, replacing any previous copy.
func (d *DocumentFiles) Save(id, filename string, data []byte) error {
	path, err := d.sanitizeFilename(id, filename)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save document %s: %w", filename, err)
	}
	return nil
}

// Load reads a saved document.
func (d *DocumentFiles) Load(id, filename string) ([]byte, error) {
	path, err := d.sanitizeFilename(id, filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", filename, err)
	}
	return data, nil
}

// Delete removes a saved document. A missing file is not an error.
func (d *DocumentFiles) Delete(id, filename string) error {
	path, err := d.sanitizeFilename(id, filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete document %s: %w", filename, err)
	}
	return nil
}
