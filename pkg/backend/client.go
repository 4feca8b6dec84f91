// Package backend holds clients for the hosted collaborators: the relational
// REST store, object storage, the realtime feed, and the AI endpoints.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// APIError is a non-2xx response from a remote collaborator. Message carries
// the server's own error text verbatim when the body had one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend: unexpected status %d", e.StatusCode)
}

// errorMessage pulls a human-readable message out of a JSON error body.
// Backends are inconsistent about the field name.
func errorMessage(body []byte) string {
	for _, key := range []string{"message", "error", "msg"} {
		if v := gjson.GetBytes(body, key); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
}

// Client talks to the hosted relational store over its REST interface
// (PostgREST-style filter parameters, e.g. workspace_id=eq.X).
type Client struct {
	baseURL string
	anonKey string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a store client. token may equal anonKey for anonymous
// access; authenticated sessions pass the user's access token.
func NewClient(baseURL, anonKey, token string, logger *slog.Logger) *Client {
	if token == "" {
		token = anonKey
	}
	return &Client{
		baseURL: baseURL,
		anonKey: anonKey,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Select fetches rows from a table. filters are raw REST predicates
// ("workspace_id" -> "eq.ws-1"). dest must be a pointer to a slice.
func (c *Client) Select(ctx context.Context, table string, filters map[string]string, dest interface{}) error {
	query := url.Values{}
	for k, v := range filters {
		query.Set(k, v)
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/rest/v1/"+table, query, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "select %s", table)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Wrapf(statusError(resp), "select %s", table)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrapf(err, "decode %s rows", table)
	}
	return nil
}

// Insert creates a row. When dest is non-nil the created representation is
// decoded into it.
func (c *Client) Insert(ctx context.Context, table string, record interface{}, dest interface{}) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrapf(err, "encode %s row", table)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/rest/v1/"+table, nil, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if dest != nil {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "insert %s", table)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Wrapf(statusError(resp), "insert %s", table)
	}
	if dest == nil {
		return nil
	}

	// Representation comes back as a single-element array.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "read %s representation", table)
	}
	if gjson.GetBytes(body, "0").Exists() {
		body = []byte(gjson.GetBytes(body, "0").Raw)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return errors.Wrapf(err, "decode %s representation", table)
	}
	return nil
}

// Update patches rows matched by filters.
func (c *Client) Update(ctx context.Context, table string, filters map[string]string, patch interface{}) error {
	payload, err := json.Marshal(patch)
	if err != nil {
		return errors.Wrapf(err, "encode %s patch", table)
	}

	query := url.Values{}
	for k, v := range filters {
		query.Set(k, v)
	}

	req, err := c.newRequest(ctx, http.MethodPatch, "/rest/v1/"+table, query, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "update %s", table)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Wrapf(statusError(resp), "update %s", table)
	}
	return nil
}
