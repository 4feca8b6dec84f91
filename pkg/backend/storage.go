package backend

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Storage talks to the hosted object storage service.
type Storage struct {
	baseURL string
	anonKey string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewStorage creates a storage client against the same backend host as the
// store client.
func NewStorage(baseURL, anonKey, token string, logger *slog.Logger) *Storage {
	if token == "" {
		token = anonKey
	}
	return &Storage{
		baseURL: baseURL,
		anonKey: anonKey,
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

// UploadBinary uploads raw bytes to bucket/path with the given content type.
// The body is sent as-is; no base64 inflation and no buffering into a string.
func (s *Storage) UploadBinary(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	u := s.baseURL + "/storage/v1/object/" + bucket + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "build upload request")
	}
	req.Header.Set("apikey", s.anonKey)
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", contentType)

	resp, err := s.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "upload %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Wrapf(statusError(resp), "upload %s", path)
	}
	return nil
}

// CreateSignedURL requests a time-limited read URL for an uploaded object.
func (s *Storage) CreateSignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	body, err := sjson.Set("", "expiresIn", int(ttl.Seconds()))
	if err != nil {
		return "", errors.Wrap(err, "encode sign request")
	}

	u := s.baseURL + "/storage/v1/object/sign/" + bucket + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader([]byte(body)))
	if err != nil {
		return "", errors.Wrap(err, "build sign request")
	}
	req.Header.Set("apikey", s.anonKey)
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "sign %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", errors.Wrapf(statusError(resp), "sign %s", path)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read sign response")
	}
	signed := gjson.GetBytes(raw, "signedURL").String()
	if signed == "" {
		return "", errors.Errorf("sign %s: empty signedURL in response", path)
	}

	// Relative URLs are resolved against the storage host.
	if signed[0] == '/' {
		signed = s.baseURL + "/storage/v1" + signed
	}
	return signed, nil
}
