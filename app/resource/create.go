package resource

import (
	"bitwise74/course-archive/internal"
	"bitwise74/course-archive/internal/catalog"
	"bitwise74/course-archive/pkg/metrics"
	"bitwise74/course-archive/pkg/middleware"
	"bitwise74/course-archive/pkg/validators"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Uploader name and email are deliberately not part of the body
type createBody struct {
	CourseID  string `json:"course_id" binding:"required,coursecode"`
	Year      string `json:"year" binding:"required,max=16"`
	Semester  int    `json:"semester" binding:"required,min=1,max=9"`
	Prof      string `json:"prof" binding:"max=128"`
	Type      string `json:"type" binding:"max=64"`
	OtherType string `json:"other_type" binding:"max=64"`
	Filename  string `json:"filename" binding:"required,max=200"`
	Path      string `json:"hf_path" binding:"required,max=512"`
	Hash      string `json:"file_hash" binding:"required"`
}

// ResourceCreate writes the catalog entry for a file the relay already
// stored. A visible entry with the same fingerprint makes it fail with 409.
func ResourceCreate(c *gin.Context, d *internal.Deps) {
	requestID := middleware.RequestID(c)
	who, _ := middleware.Identity(c)

	var data createBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})

		zap.L().Debug("Rejected resource body", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	typ, err := validators.ResourceType(data.Type, data.OtherType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Please specify the resource type.",
			"requestID": requestID,
		})
		return
	}

	hash := strings.ToLower(strings.TrimSpace(data.Hash))
	if !validHash(hash) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid file hash",
			"requestID": requestID,
		})
		return
	}

	key, err := validators.ObjectKey(data.Path)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid path",
			"requestID": requestID,
		})
		return
	}

	dup, err := d.Catalog.Exists(c.Request.Context(), hash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to check for duplicate", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	if dup {
		metrics.DuplicateRejections.Inc()
		c.JSON(http.StatusConflict, gin.H{
			"error":     "This file has already been uploaded",
			"requestID": requestID,
		})
		return
	}

	r, err := d.Catalog.Insert(c.Request.Context(), catalog.NewResource{
		CourseID:    validators.CourseID(data.CourseID),
		Year:        data.Year,
		Semester:    data.Semester,
		Prof:        data.Prof,
		Type:        typ,
		Filename:    data.Filename,
		StoragePath: key,
		Fingerprint: hash,
	}, who)
	if err != nil {
		if errors.Is(err, catalog.ErrNoIdentity) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":     "Please log in to continue",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to insert resource", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	zap.L().Info("Resource added",
		zap.String("requestID", requestID),
		zap.String("id", r.ID),
		zap.String("course", r.CourseID),
		zap.String("email", r.UploaderEmail),
	)

	c.JSON(http.StatusCreated, r)
}
