package http

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ImageStore persists uploaded product images and returns a public URL.
type ImageStore interface {
	Save(productID int64, filename string, r io.Reader) (string, error)
	Remove(url string) error
}

// DiskImageStore writes uploads under a local directory and serves them
// from /static/images/.
type DiskImageStore struct {
	dir string
}

func NewDiskImageStore(dir string) (*DiskImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &DiskImageStore{dir: dir}, nil
}

func (s *DiskImageStore) Save(productID int64, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	name := fmt.Sprintf("%d_%s%s", productID, uuid.New().String(), ext)

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write image file: %w", err)
	}

	return "/static/images/" + name, nil
}

func (s *DiskImageStore) Remove(url string) error {
	name := filepath.Base(url)
	// Base() strips any traversal; only files directly in the dir exist.
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove image file: %w", err)
	}
	return nil
}
