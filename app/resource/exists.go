// Package resource contains the catalog endpoints for single resources
package resource

import (
	"bitwise74/course-archive/internal"
	"bitwise74/course-archive/pkg/middleware"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ResourceExists answers the duplicate check run before an upload starts
func ResourceExists(c *gin.Context, d *internal.Deps) {
	requestID := middleware.RequestID(c)

	hash := strings.ToLower(strings.TrimSpace(c.Query("hash")))
	if !validHash(hash) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Missing or invalid hash",
			"requestID": requestID,
		})
		return
	}

	exists, err := d.Catalog.Exists(c.Request.Context(), hash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to check for duplicate", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

// validHash accepts a lowercase hex SHA-256 digest
func validHash(s string) bool {
	if len(s) != 64 {
		return false
	}

	_, err := hex.DecodeString(s)
	return err == nil
}
