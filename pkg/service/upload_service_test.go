package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeStorage struct {
	uploadErr error
	signErr   error

	uploadedBucket string
	uploadedPath   string
	uploadedData   []byte
	uploadedType   string
	signCalls      int
}

func (f *fakeStorage) UploadBinary(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	f.uploadedBucket = bucket
	f.uploadedPath = path
	f.uploadedData = data
	f.uploadedType = contentType
	return f.uploadErr
}

func (f *fakeStorage) CreateSignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	f.signCalls++
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://storage.example.com/signed/" + path, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTempFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.bin")
	if err := os.WriteFile(path, make([]byte, size), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestUploadPrefersSignedURL(t *testing.T) {
	storage := &fakeStorage{}
	svc := NewUploadService(storage, "card-media", discardLogger())
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }

	path := writeTempFile(t, 1024)
	result, err := svc.Upload(context.Background(), path, "image/jpeg", "site photo.jpg", "ws-1")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if result.SignedURL == "" || result.StoragePath == "" {
		t.Fatalf("result = %+v, want signed URL and storage path", result)
	}
	if result.Base64 != "" {
		t.Fatalf("result.Base64 = %q, want empty on the direct path", result.Base64)
	}
	want := "ws-1/1700000000000_sitephoto.jpg"
	if result.StoragePath != want {
		t.Fatalf("StoragePath = %q, want %q", result.StoragePath, want)
	}
	if storage.uploadedType != "image/jpeg" {
		t.Fatalf("content type = %q, want image/jpeg", storage.uploadedType)
	}
}

func TestUploadFallsBackToBase64(t *testing.T) {
	tests := []struct {
		name    string
		storage *fakeStorage
	}{
		{"upload fails", &fakeStorage{uploadErr: errors.New("storage down")}},
		{"signing fails", &fakeStorage{signErr: errors.New("no signer")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewUploadService(tt.storage, "card-media", discardLogger())
			path := writeTempFile(t, 300)

			result, err := svc.Upload(context.Background(), path, "image/png", "a.png", "ws-1")
			if err != nil {
				t.Fatalf("Upload() error = %v", err)
			}
			if !result.Inline() {
				t.Fatalf("result = %+v, want inline fallback", result)
			}
			if result.SignedURL != "" || result.StoragePath != "" {
				t.Fatalf("result = %+v, want no storage fields on the fallback path", result)
			}
			if result.FileName != "a.png" || result.MimeType != "image/png" {
				t.Fatalf("fallback metadata = %q/%q, want a.png/image/png", result.FileName, result.MimeType)
			}
		})
	}
}

func TestUploadFallbackSizeCeiling(t *testing.T) {
	// 6,000,000 raw bytes encode to exactly 8,000,000 base64 characters, the
	// largest accepted payload. One more byte tips the encoding over.
	tests := []struct {
		name     string
		rawBytes int
		wantErr  bool
	}{
		{"at ceiling", 6_000_000, false},
		{"over ceiling", 6_000_001, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := &fakeStorage{uploadErr: errors.New("storage down")}
			svc := NewUploadService(storage, "card-media", discardLogger())
			path := writeTempFile(t, tt.rawBytes)

			result, err := svc.Upload(context.Background(), path, "video/mp4", "clip.mp4", "ws-1")
			if tt.wantErr {
				var sizeErr *SizeExceededError
				if !errors.As(err, &sizeErr) {
					t.Fatalf("Upload() error = %v, want SizeExceededError", err)
				}
				if sizeErr.EstimatedMB < 5.0 || sizeErr.EstimatedMB > 7.0 {
					t.Fatalf("EstimatedMB = %v, want around 5.7", sizeErr.EstimatedMB)
				}
				if !strings.Contains(sizeErr.Error(), "MB") {
					t.Fatalf("error %q does not cite the size estimate", sizeErr.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Upload() error = %v", err)
			}
			if len(result.Base64) != maxBase64Chars {
				t.Fatalf("len(Base64) = %d, want %d", len(result.Base64), maxBase64Chars)
			}
		})
	}
}

func TestUploadMissingFile(t *testing.T) {
	storage := &fakeStorage{}
	svc := NewUploadService(storage, "card-media", discardLogger())

	_, err := svc.Upload(context.Background(), filepath.Join(t.TempDir(), "gone.jpg"), "image/jpeg", "gone.jpg", "ws-1")
	if err == nil {
		t.Fatal("Upload() error = nil, want error for missing file")
	}
	if storage.uploadedPath != "" {
		t.Fatalf("storage called with %q, want no call for missing file", storage.uploadedPath)
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report final.pdf", "reportfinal.pdf"},
		{"../../etc/passwd", "....etcpasswd"},
		{"saha-notu_3.jpg", "saha-notu_3.jpg"},
		{"???", "file"},
	}
	for _, tt := range tests {
		if got := sanitizeFileName(tt.in); got != tt.want {
			t.Fatalf("sanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
