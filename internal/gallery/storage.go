package gallery

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/veresiye/defter/internal/platform/httpx"
)

const uploadDir = "gallery"

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

var (
	// ErrImageRequired is returned when an image file is missing on create.
	ErrImageRequired = httpx.NewFieldErrors("image", "No file was submitted.")
	// ErrUnsupportedImage is returned for uploads that are not JPEG, PNG, GIF or WEBP.
	ErrUnsupportedImage = httpx.NewFieldErrors("image", "Upload a valid image. Supported formats: JPEG, PNG, GIF, WEBP.")
)

// LocalStorage keeps uploaded images on the local filesystem under root.
type LocalStorage struct {
	root      string
	urlPrefix string
	maxBytes  int64
}

// NewLocalStorage builds LocalStorage. urlPrefix is how root is served over HTTP.
func NewLocalStorage(root, urlPrefix string, maxBytes int64) (*LocalStorage, error) {
	if err := os.MkdirAll(filepath.Join(root, uploadDir), 0o755); err != nil {
		return nil, fmt.Errorf("gallery: prepare media dir: %w", err)
	}
	return &LocalStorage{root: root, urlPrefix: strings.TrimRight(urlPrefix, "/"), maxBytes: maxBytes}, nil
}

// Save sniffs and stores an upload, returning its path relative to root.
func (s *LocalStorage) Save(src io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(src, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("gallery: read upload: %w", err)
	}
	if len(data) == 0 {
		return "", ErrImageRequired
	}
	if int64(len(data)) > s.maxBytes {
		return "", httpx.NewFieldErrors("image", fmt.Sprintf("Ensure the file is at most %d bytes.", s.maxBytes))
	}
	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedImageTypes...) {
		return "", ErrUnsupportedImage
	}

	rel := path.Join(uploadDir, uuid.NewString()+mt.Extension())
	dst, err := os.OpenFile(filepath.Join(s.root, filepath.FromSlash(rel)), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("gallery: create file: %w", err)
	}
	if _, err := io.Copy(dst, bytes.NewReader(data)); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("gallery: write file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("gallery: close file: %w", err)
	}
	return rel, nil
}

// Remove deletes a stored file. Missing files are ignored.
func (s *LocalStorage) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(path.Clean("/" + rel))))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("gallery: remove file: %w", err)
	}
	return nil
}

// URL returns the public URL of a stored file.
func (s *LocalStorage) URL(rel string) string {
	if rel == "" {
		return ""
	}
	return s.urlPrefix + "/" + rel
}
