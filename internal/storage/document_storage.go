package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DocumentStorage is the file store for payout verification documents.
type DocumentStorage struct {
	rootPath       string
	maxUploadBytes int64
}

// NewDocumentStorage creates the file store, making the root directory.
func NewDocumentStorage(rootPath string, maxUploadMB int64) (*DocumentStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: could not create directory %s: %w", rootPath, err)
	}

	return &DocumentStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Save writes an uploaded document and returns its relative path and size.
func (s *DocumentStorage) Save(ctx context.Context, operatorID uuid.UUID, originalName string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	safeName := sanitizeFilename(originalName)
	fileName := fmt.Sprintf("%s_%d%s", operatorID.String(), time.Now().UnixNano(), filepath.Ext(safeName))

	operatorDir := filepath.Join(s.rootPath, operatorID.String())
	if err := os.MkdirAll(operatorDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("storage: could not create operator directory: %w", err)
	}

	targetPath := filepath.Join(operatorDir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", 0, fmt.Errorf("storage: could not create file: %w", err)
	}
	defer f.Close()

	limitedReader := io.LimitedReader{R: r, N: s.maxUploadBytes + 1}
	written, err := io.Copy(f, &limitedReader)
	if err != nil {
		_ = os.Remove(tempPath)
		return "", 0, fmt.Errorf("storage: write failed: %w", err)
	}

	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return "", 0, fmt.Errorf("storage: file exceeds the %d byte limit", s.maxUploadBytes)
	}

	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("storage: close failed: %w", err)
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		return "", 0, fmt.Errorf("storage: rename failed: %w", err)
	}

	relative := filepath.Join(operatorID.String(), fileName)
	return relative, written, nil
}

// Open returns a reader over a stored document.
func (s *DocumentStorage) Open(ctx context.Context, relativePath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return os.Open(filepath.Join(s.rootPath, relativePath))
}

// Delete removes a stored document.
func (s *DocumentStorage) Delete(ctx context.Context, relativePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(s.rootPath, relativePath)
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: could not delete file: %w", err)
	}
	return nil
}

// sanitizeFilename strips path components and dangerous characters.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		name = "document"
	}
	return name
}
