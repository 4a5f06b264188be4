package service

import (
	"bitwise74/course-archive/internal/storage"
	"bitwise74/course-archive/pkg/validators"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectPath(t *testing.T) {
	fp := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

	tests := []struct {
		course, year string
		sem          int
		name, want   string
	}{
		{"cs f111", "2023-24", 1, "Lecture 1.pdf", "CS_F111/2023-24/sem1/0123456789ab/Lecture 1.pdf"},
		{"MATH F112", "2023/24", 2, "notes.zip", "MATH_F112/2023-24/sem2/0123456789ab/notes.zip"},
		{"BIO F110", "2022", 1, "C:\\Users\\me\\lab.docx", "BIO_F110/2022/sem1/0123456789ab/lab.docx"},
		{"BIO F110", "2022", 1, "../../etc/passwd", "BIO_F110/2022/sem1/0123456789ab/passwd"},
		{"BIO F110", "2022", 1, "..", "BIO_F110/2022/sem1/0123456789ab/file"},
		{"CS F111", "2023", 1, "a\x00b.pdf", "CS_F111/2023/sem1/0123456789ab/ab.pdf"},
		{"CS\x00 F111", "20\n23", 1, "\x01\x7f", "CS_F111/2023/sem1/0123456789ab/file"},
	}

	for _, tt := range tests {
		got := ObjectPath(tt.course, tt.year, tt.sem, fp, tt.name)
		assert.Equal(t, tt.want, got)

		// Every derived key must be one the download and delete routes accept
		_, err := validators.ObjectKey(got)
		assert.NoError(t, err, got)
	}
}

func digest(b []byte) string {
	s := sha256.Sum256(b)
	return hex.EncodeToString(s[:])
}

func TestStore(t *testing.T) {
	mem := storage.NewMemory()
	u := NewUploader(mem)

	data := []byte("%PDF-1.4 slides")
	obj, err := u.Store(context.Background(), UploadInput{
		CourseID:    "CS F111",
		Year:        "2023-24",
		Semester:    1,
		Filename:    "slides.pdf",
		Body:        bytes.NewReader(data),
		Size:        int64(len(data)),
		ContentType: "application/pdf",
	})
	require.NoError(t, err)

	assert.Equal(t, digest(data), obj.Fingerprint)
	assert.Equal(t, "CS_F111/2023-24/sem1/"+digest(data)[:12]+"/slides.pdf", obj.Path)
	assert.False(t, obj.Existed)

	got, ct, err := mem.Get(obj.Path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "application/pdf", ct)

	// Same bytes again land on the same key and skip the write
	again, err := u.Store(context.Background(), UploadInput{
		CourseID: "cs f111",
		Year:     "2023-24",
		Semester: 1,
		Filename: "slides.pdf",
		Body:     bytes.NewReader(data),
		Size:     int64(len(data)),
	})
	require.NoError(t, err)
	assert.True(t, again.Existed)
	assert.Equal(t, obj.Path, again.Path)
	assert.Equal(t, 1, mem.Len())

	require.NoError(t, u.Remove(context.Background(), obj.Path))
	assert.Zero(t, mem.Len())
}

func TestStoreMissingFields(t *testing.T) {
	u := NewUploader(storage.NewMemory())

	_, err := u.Store(context.Background(), UploadInput{Year: "2023", Filename: "a.pdf", Body: bytes.NewReader(nil)})
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = u.Store(context.Background(), UploadInput{CourseID: "CS F111", Year: "2023", Filename: "a.pdf"})
	assert.Error(t, err)
}

func TestStoreCancelled(t *testing.T) {
	mem := storage.NewMemory()
	u := NewUploader(mem)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := u.Store(ctx, UploadInput{
		CourseID: "CS F111",
		Year:     "2023",
		Filename: "a.pdf",
		Body:     bytes.NewReader([]byte("data")),
		Size:     4,
	})
	assert.Error(t, err)
	assert.Zero(t, mem.Len())
}

type failingStore struct {
	storage.Store
}

func (failingStore) Exists(context.Context, string) (bool, error) { return false, nil }

func (failingStore) Put(context.Context, string, io.Reader, int64, string) error {
	return errors.New("bucket on fire")
}

func TestStoreWriteFailure(t *testing.T) {
	u := NewUploader(failingStore{})

	_, err := u.Store(context.Background(), UploadInput{
		CourseID: "CS F111",
		Year:     "2023",
		Filename: "a.pdf",
		Body:     bytes.NewReader([]byte("data")),
		Size:     4,
	})
	assert.ErrorContains(t, err, "bucket on fire")
}
