// Package model defines database models
package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Resource types offered by the upload form. Anything else is stored as the
// free text given for "Other".
const (
	TypeLectureSlides  = "Lecture Slides"
	TypeTutorials      = "Tutorials"
	TypeLabManuals     = "Lab Manuals"
	TypePYQWithSoln    = "PYQ (with soln.)"
	TypePYQWithoutSoln = "PYQ (without soln.)"
	TypeOther          = "Other"
)

// KnownTypes is the fixed set of resource types, in display order
var KnownTypes = []string{
	TypeLectureSlides,
	TypeTutorials,
	TypeLabManuals,
	TypePYQWithSoln,
	TypePYQWithoutSoln,
}

type Resource struct {
	ID       string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CourseID string `gorm:"index;not null" json:"course_id"`
	Year     string `json:"year"`
	Semester int    `json:"semester"`
	Prof     string `json:"prof"`
	Type     string `json:"type"`
	Filename string `json:"filename"` // Original client side name, kept verbatim

	// Relative path inside the object store, also what the download proxy expects
	StoragePath string `gorm:"index;not null" json:"hf_path"`

	// Not unique on purpose, hidden rows may share a fingerprint with a visible one
	Fingerprint string `gorm:"index;not null" json:"file_hash"`

	UploaderName  string `json:"uploader_name"`
	UploaderEmail string `gorm:"index" json:"uploader_email"`
	Hidden        bool   `gorm:"not null;default:false" json:"is_hidden"`
	Upvotes       int    `gorm:"not null;default:0" json:"upvotes"`
	CreatedAt     int64  `gorm:"autoCreateTime" json:"created_at"`
}

func (r *Resource) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	return nil
}
