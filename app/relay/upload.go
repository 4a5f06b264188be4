// Package relay accepts files from trusted callers and writes them to the
// object store
package relay

import (
	"bitwise74/course-archive/internal"
	"bitwise74/course-archive/internal/service"
	"bitwise74/course-archive/pkg/metrics"
	"bitwise74/course-archive/pkg/middleware"
	"bitwise74/course-archive/pkg/validators"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RelayUpload stores the multipart "file" under a path derived from the
// course, year, semester and the file's fingerprint. The caller has already
// been authenticated by the secret middleware.
func RelayUpload(c *gin.Context, d *internal.Deps) {
	requestID := middleware.RequestID(c)

	fh, err := c.FormFile("file")
	if err != nil {
		metrics.RelayUploads.WithLabelValues("rejected").Inc()

		switch {
		case middleware.IsBodyTooLarge(err):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":     "File exceeds the upload limit",
				"requestID": requestID,
			})
		case errors.Is(err, http.ErrMissingFile):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "No file provided",
				"requestID": requestID,
			})
		default:
			// Mostly bodies cut short by a client that went away
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Malformed upload",
				"requestID": requestID,
			})

			zap.L().Warn("Failed to read multipart upload", zap.String("requestID", requestID), zap.Error(err))
		}
		return
	}

	courseID := validators.CourseID(c.PostForm("course_id"))
	year := strings.TrimSpace(c.PostForm("year"))
	semester, err := strconv.Atoi(strings.TrimSpace(c.PostForm("semester")))
	if courseID == "" || year == "" || err != nil || semester < 1 {
		metrics.RelayUploads.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Missing or invalid course_id, year or semester",
			"requestID": requestID,
		})
		return
	}

	code, f, mime, err := validators.FileValidator(fh, d.Config.Upload.MaxSize, d.Config.Upload.AllowedTypes)
	if err != nil {
		metrics.RelayUploads.WithLabelValues("rejected").Inc()

		msg := err.Error()
		if code == http.StatusInternalServerError {
			msg = "Internal server error"
			zap.L().Error("Failed to validate upload", zap.String("requestID", requestID), zap.Error(err))
		}

		c.JSON(code, gin.H{
			"error":     msg,
			"requestID": requestID,
		})
		return
	}
	defer f.Close()

	obj, err := d.Uploader.Store(c.Request.Context(), service.UploadInput{
		CourseID:    courseID,
		Year:        year,
		Semester:    semester,
		Filename:    fh.Filename,
		Body:        f,
		Size:        fh.Size,
		ContentType: mime,
	})
	if errors.Is(err, validators.ErrInvalidPath) || errors.Is(err, service.ErrMissingField) {
		metrics.RelayUploads.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid file name",
			"requestID": requestID,
		})
		return
	}

	if err != nil {
		metrics.RelayUploads.WithLabelValues("failed").Inc()
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "Upload to storage failed",
			"requestID": requestID,
		})

		zap.L().Error("Failed to store upload", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	if obj.Existed {
		metrics.RelayUploads.WithLabelValues("existing").Inc()
	} else {
		metrics.RelayUploads.WithLabelValues("stored").Inc()
		metrics.RelayBytes.Add(float64(obj.Size))
	}

	zap.L().Info("Stored upload",
		zap.String("requestID", requestID),
		zap.String("path", obj.Path),
		zap.Int64("size", obj.Size),
	)

	c.JSON(http.StatusOK, gin.H{
		"hf_path": obj.Path,
		"path":    obj.Path,
		"sha256":  obj.Fingerprint,
		"size":    obj.Size,
		"existed": obj.Existed,
	})
}
