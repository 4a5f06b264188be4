package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

// ProgressFunc receives the share of the file sent so far, 0 to 100. It is
// only called when the value grows and may be called from another goroutine.
type ProgressFunc func(percent int)

type RelayRequest struct {
	FilePath string
	CourseID string
	Year     string
	Semester int
}

type RelayResult struct {
	Path   string
	SHA256 string
	Size   int64
	// Existed is set when the relay already had these bytes
	Existed bool
}

// Relay streams the file to the relay. The multipart body is built around
// the open file so it's never held in memory, and its exact length is known
// up front so progress is measured against the real total.
func (c *Client) Relay(ctx context.Context, in RelayRequest, progress ProgressFunc) (*RelayResult, error) {
	f, err := os.Open(in.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file, %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file, %w", err)
	}

	contentType := "application/octet-stream"
	if m, err := mimetype.DetectReader(f); err == nil {
		contentType = m.String()
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind file, %w", err)
	}

	head, tail, boundary, err := multipartFrame(in, filepath.Base(in.FilePath), contentType)
	if err != nil {
		return nil, err
	}

	total := int64(len(head)) + st.Size() + int64(len(tail))
	body := newProgressReader(io.MultiReader(bytes.NewReader(head), f, bytes.NewReader(tail)), total, progress)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL(), body)
	if err != nil {
		return nil, err
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	req.Header.Set("secret", c.RelaySecret)

	body.start()

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send file, %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(ErrStoreFailed, resp)
	}

	var out struct {
		HFPath  string `json:"hf_path"`
		Path    string `json:"path"`
		SHA256  string `json:"sha256"`
		Size    int64  `json:"size"`
		Existed bool   `json:"existed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	path := out.HFPath
	if path == "" {
		path = out.Path
	}
	if path == "" {
		return nil, fmt.Errorf("%w: no stored path", ErrMalformedResponse)
	}

	body.finish()

	return &RelayResult{
		Path:    path,
		SHA256:  out.SHA256,
		Size:    out.Size,
		Existed: out.Existed,
	}, nil
}

// multipartFrame renders everything of the form except the file bytes: the
// text fields plus the file part header, and the closing boundary
func multipartFrame(in RelayRequest, filename, contentType string) (head, tail []byte, boundary string, err error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"course_id", in.CourseID},
		{"year", in.Year},
		{"semester", strconv.Itoa(in.Semester)},
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return nil, nil, "", err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+quoteEscaper.Replace(filename)+`"`)
	h.Set("Content-Type", contentType)
	if _, err := mw.CreatePart(h); err != nil {
		return nil, nil, "", err
	}

	n := buf.Len()
	if err := mw.Close(); err != nil {
		return nil, nil, "", err
	}

	all := buf.Bytes()
	return all[:n], all[n:], mw.Boundary(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

type progressReader struct {
	r     io.Reader
	total int64
	fn    ProgressFunc

	mu   sync.Mutex
	sent int64
	last int
}

func newProgressReader(r io.Reader, total int64, fn ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, fn: fn, last: -1}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)

	p.mu.Lock()
	p.sent += int64(n)
	p.report(p.percent())
	p.mu.Unlock()

	return n, err
}

func (p *progressReader) percent() int {
	if p.total <= 0 {
		return 100
	}

	pct := int(p.sent * 100 / p.total)
	return min(pct, 100)
}

// report must be called with mu held
func (p *progressReader) report(pct int) {
	if p.fn == nil || pct <= p.last {
		return
	}

	p.last = pct
	p.fn(pct)
}

func (p *progressReader) start() {
	p.mu.Lock()
	p.report(0)
	p.mu.Unlock()
}

// finish reports 100 once the relay confirmed the upload
func (p *progressReader) finish() {
	p.mu.Lock()
	p.report(100)
	p.mu.Unlock()
}
