// Media upload strategy: direct-to-storage with signed URL, inline base64
// fallback under a hard size ceiling.
package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/kaizenisitmax-pixel/voxi/pkg/models"
)

const (
	// Hard ceiling for the inline fallback, in base64 characters (~6MB
	// decoded). Above this the capture attempt fails; never truncate.
	maxBase64Chars = 8_000_000

	// Signed read URLs are valid for 10 minutes, long enough for the
	// analysis endpoint to fetch the object.
	signedURLTTL = 10 * time.Minute
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SizeExceededError is terminal for a capture attempt: the file does not fit
// the inline fallback. The approximate size is surfaced so the user can pick
// a smaller file.
type SizeExceededError struct {
	EstimatedMB float64
}

func (e *SizeExceededError) Error() string {
	return fmt.Sprintf("file too large for inline transfer (~%.1f MB)", e.EstimatedMB)
}

// StorageClient is the object-storage surface the upload strategy needs.
type StorageClient interface {
	UploadBinary(ctx context.Context, bucket, path string, data []byte, contentType string) error
	CreateSignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error)
}

// UploadService implements the resilient media upload strategy: prefer a
// direct binary upload plus signed URL (no base64 inflation), fall back to
// inline base64 for small files when storage is unavailable.
type UploadService struct {
	storage StorageClient
	bucket  string
	logger  *slog.Logger
	now     func() time.Time
}

// NewUploadService creates an upload service for one storage bucket.
func NewUploadService(storage StorageClient, bucket string, logger *slog.Logger) *UploadService {
	return &UploadService{
		storage: storage,
		bucket:  bucket,
		logger:  logger,
		now:     time.Now,
	}
}

// sanitizeFileName strips everything outside [A-Za-z0-9._-].
func sanitizeFileName(name string) string {
	safe := unsafeFileChars.ReplaceAllString(name, "")
	if safe == "" {
		safe = "file"
	}
	return safe
}

// Upload moves a local file to the analysis endpoint's reach. Storage-path
// failures are recoverable (they fall through to base64); only a missing
// file or an oversized fallback payload fails the attempt. There is no
// automatic retry — a retry is a fresh user-initiated capture.
func (s *UploadService) Upload(ctx context.Context, filePath, mimeType, fileName, containerID string) (*models.UploadResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read capture file: %w", err)
	}

	storagePath := fmt.Sprintf("%s/%d_%s", containerID, s.now().UnixMilli(), sanitizeFileName(fileName))

	if err := s.storage.UploadBinary(ctx, s.bucket, storagePath, data, mimeType); err != nil {
		s.logger.Warn("Storage upload failed, falling back to inline transfer", "path", storagePath, "error", err)
		return s.inlineFallback(data, fileName, mimeType)
	}

	signedURL, err := s.storage.CreateSignedURL(ctx, s.bucket, storagePath, signedURLTTL)
	if err != nil {
		s.logger.Warn("Signed URL issuance failed, falling back to inline transfer", "path", storagePath, "error", err)
		return s.inlineFallback(data, fileName, mimeType)
	}

	return &models.UploadResult{SignedURL: signedURL, StoragePath: storagePath}, nil
}

func (s *UploadService) inlineFallback(data []byte, fileName, mimeType string) (*models.UploadResult, error) {
	encoded := base64.StdEncoding.EncodeToString(data)
	if len(encoded) > maxBase64Chars {
		estimatedMB := float64(len(encoded)) * 0.75 / 1048576
		return nil, &SizeExceededError{EstimatedMB: estimatedMB}
	}
	return &models.UploadResult{
		Base64:   encoded,
		FileName: fileName,
		MimeType: mimeType,
	}, nil
}
