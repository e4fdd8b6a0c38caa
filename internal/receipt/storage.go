package receipt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrFileNotFound is returned when a manifest row references a document that does not exist
var ErrFileNotFound = errors.New("file not found")

// Storage defines the interface for reading receipt documents
type Storage interface {
	// Get retrieves a document by its manifest file reference
	Get(name string) ([]byte, error)

	// Path returns the location of a document, for logging
	Path(name string) string
}

// LocalStorage implements the Storage interface using a local directory
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("opening document directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document directory %s is not a directory", basePath)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Get reads a document from the directory
func (l *LocalStorage) Get(name string) ([]byte, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty document reference", ErrFileNotFound)
	}

	fullPath := l.Path(name)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fullPath)
		}
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Path joins the document name onto the directory
func (l *LocalStorage) Path(name string) string {
	return filepath.Join(l.basePath, name)
}
