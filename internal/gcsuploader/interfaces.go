package gcsuploader

import (
	"context"
)

// StorageService provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// UploadDir publishes every file under dir below the given prefix.
	UploadDir(ctx context.Context, bucketName, prefix, dir string) ([]string, error)

	// DownloadPrefix copies the objects directly under a gs:// prefix into dir.
	DownloadPrefix(ctx context.Context, uri, dir string) ([]string, error)
}

// GCSStorageService is the concrete implementation of StorageService
// that interacts with Google Cloud Storage.
type GCSStorageService struct{}

// NewGCSStorageService creates a new instance of GCSStorageService.
func NewGCSStorageService() *GCSStorageService {
	return &GCSStorageService{}
}

// UploadDir delegates to the package-level UploadDir function.
func (s *GCSStorageService) UploadDir(ctx context.Context, bucketName, prefix, dir string) ([]string, error) {
	return UploadDir(ctx, bucketName, prefix, dir)
}

// DownloadPrefix delegates to the package-level DownloadPrefix function.
func (s *GCSStorageService) DownloadPrefix(ctx context.Context, uri, dir string) ([]string, error) {
	return DownloadPrefix(ctx, uri, dir)
}

var _ StorageService = (*GCSStorageService)(nil)
