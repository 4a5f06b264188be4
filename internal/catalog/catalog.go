// Package catalog is the data layer for resource records. Authorization that
// the access gate only hints at (ownership on delete) is enforced here.
package catalog

import (
	"bitwise74/course-archive/internal/model"
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrNotOwner          = errors.New("resource is owned by someone else")
	ErrAlreadyInteracted = errors.New("action already recorded")
	ErrNoIdentity        = errors.New("no identity provided")
)

type Catalog struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Catalog {
	return &Catalog{DB: db}
}

// NewResource holds the fields the uploader controls. Uploader identity is
// deliberately absent, Insert takes it from the session.
type NewResource struct {
	CourseID    string
	Year        string
	Semester    int
	Prof        string
	Type        string
	Filename    string
	StoragePath string
	Fingerprint string
}

// Exists reports whether a visible resource already carries fp. It is not
// linked to Insert: two uploads of the same bytes racing each other can both
// see false and both insert.
func (c *Catalog) Exists(ctx context.Context, fp string) (bool, error) {
	var n int64

	err := c.DB.WithContext(ctx).
		Model(model.Resource{}).
		Where("fingerprint = ? AND hidden = ?", strings.ToLower(fp), false).
		Count(&n).
		Error
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate, %w", err)
	}

	return n > 0, nil
}

func (c *Catalog) Insert(ctx context.Context, in NewResource, who *model.Identity) (*model.Resource, error) {
	if who == nil || who.Email == "" {
		return nil, ErrNoIdentity
	}

	r := &model.Resource{
		CourseID:      strings.ToUpper(strings.TrimSpace(in.CourseID)),
		Year:          strings.TrimSpace(in.Year),
		Semester:      in.Semester,
		Prof:          strings.TrimSpace(in.Prof),
		Type:          in.Type,
		Filename:      in.Filename,
		StoragePath:   in.StoragePath,
		Fingerprint:   strings.ToLower(in.Fingerprint),
		UploaderName:  who.DisplayName(),
		UploaderEmail: who.Email,
	}

	if err := c.DB.WithContext(ctx).Create(r).Error; err != nil {
		return nil, fmt.Errorf("failed to insert resource, %w", err)
	}

	return r, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (*model.Resource, error) {
	var r model.Resource

	err := c.DB.WithContext(ctx).
		Where("id = ?", id).
		First(&r).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to fetch resource, %w", err)
	}

	return &r, nil
}

// ListByCourse returns the visible resources of a course, newest year first
func (c *Catalog) ListByCourse(ctx context.Context, courseID string) ([]model.Resource, error) {
	var results []model.Resource

	err := c.DB.WithContext(ctx).
		Where("course_id = ? AND hidden = ?", strings.ToUpper(strings.TrimSpace(courseID)), false).
		Order("year desc").
		Order("created_at desc").
		Find(&results).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to list resources, %w", err)
	}

	return results, nil
}

// Referenced reports whether any row, hidden ones included, points at the
// stored object
func (c *Catalog) Referenced(ctx context.Context, storagePath string) (bool, error) {
	var n int64

	err := c.DB.WithContext(ctx).
		Model(model.Resource{}).
		Where("storage_path = ?", storagePath).
		Count(&n).
		Error
	if err != nil {
		return false, fmt.Errorf("failed to check object references, %w", err)
	}

	return n > 0, nil
}

// Delete removes the catalog row if who uploaded it. The stored object is left
// in place.
func (c *Catalog) Delete(ctx context.Context, id string, who *model.Identity) error {
	if who == nil || who.Email == "" {
		return ErrNoIdentity
	}

	res := c.DB.WithContext(ctx).
		Where("id = ? AND uploader_email = ?", id, who.Email).
		Delete(&model.Resource{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete resource, %w", res.Error)
	}

	if res.RowsAffected > 0 {
		return nil
	}

	// Nothing deleted, tell apart a missing row from someone else's row
	if _, err := c.Get(ctx, id); err != nil {
		return err
	}

	return ErrNotOwner
}

// SetHidden flips the moderation flag
func (c *Catalog) SetHidden(ctx context.Context, id string, hidden bool) error {
	res := c.DB.WithContext(ctx).
		Model(&model.Resource{}).
		Where("id = ?", id).
		Update("hidden", hidden)
	if res.Error != nil {
		return fmt.Errorf("failed to update visibility, %w", res.Error)
	}

	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
