package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// FileStorage abstracts the object store. Keys may contain slashes, e.g.
// "BulkUploadResponse/{job_id}/result.xlsx".
type FileStorage interface {
	UploadFile(file multipart.File, key string) (string, error)
	UploadFileFromReader(src io.Reader, key string) (string, error)
	DownloadFile(key string) (io.ReadCloser, error)
	DeleteFile(key string) error
	DeletePrefix(prefix string) error
	FileExists(key string) (bool, error)
}

type LocalFileStorage struct {
	uploadPath string
}

func NewLocalFileStorage(uploadPath string) *LocalFileStorage {
	return &LocalFileStorage{uploadPath: uploadPath}
}

// UploadFile handles multipart file uploads
func (s *LocalFileStorage) UploadFile(file multipart.File, key string) (string, error) {
	return s.write(file, key)
}

// UploadFileFromReader handles file uploads from any io.Reader
func (s *LocalFileStorage) UploadFileFromReader(src io.Reader, key string) (string, error) {
	return s.write(src, key)
}

func (s *LocalFileStorage) write(src io.Reader, key string) (string, error) {
	fullPath := filepath.Join(s.uploadPath, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to copy file content: %w", err)
	}

	return key, nil
}

// DownloadFile retrieves a file for reading
func (s *LocalFileStorage) DownloadFile(key string) (io.ReadCloser, error) {
	fullPath := filepath.Join(s.uploadPath, filepath.FromSlash(key))

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// DeleteFile removes a file from storage
func (s *LocalFileStorage) DeleteFile(key string) error {
	fullPath := filepath.Join(s.uploadPath, filepath.FromSlash(key))

	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return nil
	}

	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// DeletePrefix removes every object stored under the given key prefix.
func (s *LocalFileStorage) DeletePrefix(prefix string) error {
	fullPath := filepath.Join(s.uploadPath, filepath.FromSlash(prefix))

	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return nil
	}

	if err := os.RemoveAll(fullPath); err != nil {
		return fmt.Errorf("failed to delete prefix: %w", err)
	}

	return nil
}

// FileExists checks if a file exists in storage
func (s *LocalFileStorage) FileExists(key string) (bool, error) {
	fullPath := filepath.Join(s.uploadPath, filepath.FromSlash(key))

	_, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}

	return true, nil
}
