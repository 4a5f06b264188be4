package validators

import (
	"bitwise74/course-archive/pkg/fingerprint"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrFileTooLarge        = fingerprint.ErrFileTooLarge
	ErrNoFile              = fingerprint.ErrNoFile
	ErrFileNameTooLong     = errors.New("file name is too long")
	ErrFileTypeUnsupported = errors.New("unsupported file type")
)

const maxFileNameSize = 200

// FileValidator checks an uploaded file against the size ceiling and the
// allowed content types. An empty allowed list accepts anything. On success
// the returned file is rewound to the start and the detected MIME type is
// returned alongside it.
func FileValidator(fh *multipart.FileHeader, maxSize int64, allowed []string) (int, multipart.File, string, error) {
	if fh == nil || fh.Filename == "" {
		return http.StatusBadRequest, nil, "", ErrNoFile
	}

	if len(fh.Filename) > maxFileNameSize {
		return http.StatusBadRequest, nil, "", ErrFileNameTooLong
	}

	if err := fingerprint.CheckSize(fh.Size, maxSize); err != nil {
		return http.StatusRequestEntityTooLarge, nil, "", err
	}

	f, err := fh.Open()
	if err != nil {
		return http.StatusInternalServerError, nil, "", err
	}

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return http.StatusInternalServerError, nil, "", err
	}

	if !typeAllowed(mime, allowed) {
		f.Close()
		return http.StatusUnsupportedMediaType, nil, "", ErrFileTypeUnsupported
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return http.StatusInternalServerError, nil, "", err
	}

	return 0, f, mime.String(), nil
}

// typeAllowed walks up the MIME tree so e.g. a docx passes when zip is allowed
func typeAllowed(m *mimetype.MIME, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}

	for ; m != nil; m = m.Parent() {
		if mimetype.EqualsAny(m.String(), allowed...) {
			return true
		}
	}

	return false
}
