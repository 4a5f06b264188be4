package service

import (
	"bitwise74/course-archive/internal/storage"
	"bitwise74/course-archive/pkg/fingerprint"
	"bitwise74/course-archive/pkg/validators"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

var ErrMissingField = errors.New("missing upload field")

// UploadInput is one file received by the relay. Body must be seekable since
// it's read twice, once to hash and once to store.
type UploadInput struct {
	CourseID    string
	Year        string
	Semester    int
	Filename    string
	Body        io.ReadSeeker
	Size        int64
	ContentType string
}

type StoredObject struct {
	Path        string `json:"path"`
	Fingerprint string `json:"sha256"`
	Size        int64  `json:"size"`
	// Existed is set when the same bytes were already stored under Path
	Existed bool `json:"-"`
}

type Uploader struct {
	store storage.Store
}

func NewUploader(s storage.Store) *Uploader {
	return &Uploader{store: s}
}

// ObjectPath derives the key a file is stored under:
//
//	<COURSE>/<year>/sem<semester>/<first 12 chars of fp>/<base name>
//
// The fingerprint segment keeps two different files with the same name apart.
func ObjectPath(courseID, year string, semester int, fp, filename string) string {
	course := segment(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(courseID)), " ", "_"))
	year = segment(strings.TrimSpace(year))

	short := fp
	if len(short) > 12 {
		short = short[:12]
	}

	// Clients on Windows send backslashes
	name := path.Base(strings.ReplaceAll(stripControl(filename), "\\", "/"))
	if name = strings.TrimSpace(name); name == "" || name == "." || name == ".." || name == "/" {
		name = "file"
	}

	return path.Join(course, year, "sem"+strconv.Itoa(semester), short, name)
}

// segment turns free text into a single path segment
func segment(s string) string {
	s = strings.NewReplacer("/", "-", "\\", "-").Replace(stripControl(s))
	if s = strings.Trim(s, "."); s == "" {
		return "_"
	}

	return s
}

// stripControl drops NUL and the other control characters, none of which
// survive in an object key
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, s)
}

// Store hashes the body, derives its path and writes it. Writing is skipped
// when the path is already taken, the fingerprint in the path guarantees the
// bytes are the same. ctx should be the request context so a client that
// goes away stops the write.
func (u *Uploader) Store(ctx context.Context, in UploadInput) (*StoredObject, error) {
	if strings.TrimSpace(in.CourseID) == "" || strings.TrimSpace(in.Year) == "" || in.Filename == "" {
		return nil, ErrMissingField
	}

	if in.Body == nil {
		return nil, fingerprint.ErrNoFile
	}

	fp, err := fingerprint.Sum(in.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to hash upload, %w", err)
	}

	if _, err := in.Body.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind upload, %w", err)
	}

	key, err := validators.ObjectKey(ObjectPath(in.CourseID, in.Year, in.Semester, fp, in.Filename))
	if err != nil {
		return nil, err
	}

	obj := &StoredObject{
		Path:        key,
		Fingerprint: fp,
		Size:        in.Size,
	}

	exists, err := u.store.Exists(ctx, obj.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to check object, %w", err)
	}

	if exists {
		zap.L().Debug("Object already stored, skipping write", zap.String("path", obj.Path))
		obj.Existed = true
		return obj, nil
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := u.store.Put(ctx, obj.Path, in.Body, in.Size, contentType); err != nil {
		return nil, fmt.Errorf("failed to write object, %w", err)
	}

	return obj, nil
}

// Remove deletes a stored object. It's the compensating step for a catalog
// insert that failed after the write went through.
func (u *Uploader) Remove(ctx context.Context, key string) error {
	if err := u.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete object, %w", err)
	}

	return nil
}
