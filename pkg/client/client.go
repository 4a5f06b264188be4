// Package client talks to the archive API and the upload relay. Upload runs
// the whole intake pipeline: validate, fingerprint, duplicate check, relay,
// catalog insert.
package client

import (
	"bitwise74/course-archive/internal/model"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

var (
	ErrInvalidInput      = errors.New("invalid upload")
	ErrDuplicate         = errors.New("this file has already been uploaded")
	ErrStoreFailed       = errors.New("upload to storage failed")
	ErrMalformedResponse = errors.New("malformed response from relay")
	ErrRequestFailed     = errors.New("request failed")
	ErrBlobInUse         = errors.New("stored file is used by a catalog entry")
)

// Longest error body read back from the server
const maxErrorBody = 4 << 10

type Client struct {
	// BaseURL of the archive API, e.g. https://archive.example.com
	BaseURL string
	// RelayURL overrides where files are sent, defaults to BaseURL
	RelayURL    string
	RelaySecret string
	// Token is the session token sent as a bearer token
	Token string
	// MaxSize is the size ceiling checked before hashing, 0 means 500 MiB
	MaxSize int64
	HTTP    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{},
	}
}

// NewResource is the catalog entry sent after the relay stored the file.
// Uploader identity is taken from the session by the server.
type NewResource struct {
	CourseID  string `json:"course_id"`
	Year      string `json:"year"`
	Semester  int    `json:"semester"`
	Prof      string `json:"prof,omitempty"`
	Type      string `json:"type"`
	OtherType string `json:"other_type,omitempty"`
	Filename  string `json:"filename"`
	Path      string `json:"hf_path"`
	Hash      string `json:"file_hash"`
}

// CheckDuplicate reports whether a visible resource already has fp
func (c *Client) CheckDuplicate(ctx context.Context, fp string) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.BaseURL+"/api/resources/exists?hash="+url.QueryEscape(fp), nil)
	if err != nil {
		return false, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate, %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, statusError(ErrRequestFailed, resp)
	}

	var out struct {
		Exists bool `json:"exists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("failed to decode duplicate check, %w", err)
	}

	return out.Exists, nil
}

// CreateResource inserts the catalog entry. A duplicate reported by the
// server comes back as ErrDuplicate.
func (c *Client) CreateResource(ctx context.Context, in NewResource) (*model.Resource, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.BaseURL+"/api/resources", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource, %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
	case http.StatusConflict:
		return nil, ErrDuplicate
	default:
		return nil, statusError(ErrRequestFailed, resp)
	}

	var r model.Resource
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode resource, %w", err)
	}

	return &r, nil
}

// DeleteBlob asks the relay to remove a stored file. The relay refuses with
// ErrBlobInUse while a catalog entry points at it.
func (c *Client) DeleteBlob(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.relayURL()+"?path="+url.QueryEscape(path), nil)
	if err != nil {
		return err
	}
	req.Header.Set("secret", c.RelaySecret)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete stored file, %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return ErrBlobInUse
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return statusError(ErrRequestFailed, resp)
	}

	return nil
}

func (c *Client) relayURL() string {
	base := c.RelayURL
	if base == "" {
		base = c.BaseURL
	}

	return strings.TrimRight(base, "/") + "/api/relay"
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	return req, nil
}

// statusError wraps sentinel with the server's error message, or the raw
// body when it isn't the usual {"error": ...} shape
func statusError(sentinel error, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Error string `json:"error"`
	}

	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}

	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return fmt.Errorf("%w: %s (status %d)", sentinel, msg, resp.StatusCode)
}
