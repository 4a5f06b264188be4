package client

import (
	"bitwise74/course-archive/internal/model"
	"bitwise74/course-archive/pkg/fingerprint"
	"bitwise74/course-archive/pkg/validators"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

type UploadRequest struct {
	FilePath  string
	CourseID  string
	Year      string
	Semester  int
	Prof      string
	Type      string
	OtherType string
}

// Upload runs the intake pipeline for one file. Each step only runs when the
// previous one succeeded:
//
//  1. input checks, ErrInvalidInput or fingerprint.ErrNoFile
//  2. size ceiling, fingerprint.ErrFileTooLarge before any byte is read
//  3. fingerprint
//  4. duplicate check, ErrDuplicate before anything is sent
//  5. relay, ErrStoreFailed or ErrMalformedResponse
//  6. catalog insert
//
// When the insert fails the stored file is deleted again, unless the relay
// reported it was already there or the catalog refused a duplicate. Either
// way the bytes may belong to another entry.
func (c *Client) Upload(ctx context.Context, in UploadRequest, progress ProgressFunc) (*model.Resource, error) {
	typ, err := checkInput(in)
	if err != nil {
		return nil, err
	}

	fp, size, err := fingerprint.File(in.FilePath, c.MaxSize)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("Fingerprinted file", zap.String("file", in.FilePath), zap.String("sha256", fp), zap.Int64("size", size))

	dup, err := c.CheckDuplicate(ctx, fp)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicate
	}

	stored, err := c.Relay(ctx, RelayRequest{
		FilePath: in.FilePath,
		CourseID: in.CourseID,
		Year:     in.Year,
		Semester: in.Semester,
	}, progress)
	if err != nil {
		return nil, err
	}

	if stored.SHA256 != "" && !strings.EqualFold(stored.SHA256, fp) {
		// The file changed between hashing and sending
		zap.L().Warn("Relay fingerprint differs from local one", zap.String("local", fp), zap.String("relay", stored.SHA256))
	}

	otherType := ""
	if typ != in.Type {
		otherType = typ
	}

	r, err := c.CreateResource(ctx, NewResource{
		CourseID:  validators.CourseID(in.CourseID),
		Year:      strings.TrimSpace(in.Year),
		Semester:  in.Semester,
		Prof:      strings.TrimSpace(in.Prof),
		Type:      typeField(in.Type),
		OtherType: otherType,
		Filename:  filepath.Base(in.FilePath),
		Path:      stored.Path,
		Hash:      fp,
	})
	if err == nil {
		return r, nil
	}

	if stored.Existed || errors.Is(err, ErrDuplicate) {
		return nil, err
	}

	// Context may be the reason the insert failed, the cleanup still has to go out
	cleanupErr := c.DeleteBlob(context.WithoutCancel(ctx), stored.Path)
	if errors.Is(cleanupErr, ErrBlobInUse) {
		// A concurrent upload of the same file got its entry in first
		return nil, fmt.Errorf("failed to add file to catalog, stored file kept for another entry, %w", err)
	}

	if cleanupErr != nil {
		zap.L().Error("Failed to remove stored file after catalog failure", zap.String("path", stored.Path), zap.Error(cleanupErr))
		return nil, errors.Join(fmt.Errorf("failed to add file to catalog, %w", err), fmt.Errorf("stored file %s was left behind, %w", stored.Path, cleanupErr))
	}

	return nil, fmt.Errorf("failed to add file to catalog, stored file removed, %w", err)
}

func checkInput(in UploadRequest) (string, error) {
	if strings.TrimSpace(in.FilePath) == "" {
		return "", fingerprint.ErrNoFile
	}

	if validators.CourseID(in.CourseID) == "" {
		return "", fmt.Errorf("%w: course is required", ErrInvalidInput)
	}

	if strings.TrimSpace(in.Year) == "" {
		return "", fmt.Errorf("%w: year is required", ErrInvalidInput)
	}

	if in.Semester < 1 {
		return "", fmt.Errorf("%w: semester is required", ErrInvalidInput)
	}

	typ, err := validators.ResourceType(in.Type, in.OtherType)
	if err != nil {
		return "", fmt.Errorf("%w: Please specify the resource type.", ErrInvalidInput)
	}

	return typ, nil
}

// typeField is what goes in the "type" field, "Other" when free text is used
func typeField(t string) string {
	if t = strings.TrimSpace(t); t == "" {
		return model.TypeOther
	}

	return t
}
