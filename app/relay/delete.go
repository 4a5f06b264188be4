package relay

import (
	"bitwise74/course-archive/internal"
	"bitwise74/course-archive/pkg/middleware"
	"bitwise74/course-archive/pkg/validators"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RelayDelete removes a stored object no catalog row points at. Callers use
// it to undo an upload whose catalog entry could not be written.
func RelayDelete(c *gin.Context, d *internal.Deps) {
	requestID := middleware.RequestID(c)

	key, err := validators.ObjectKey(c.Query("path"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid path",
			"requestID": requestID,
		})
		return
	}

	// Two uploads of the same file share a key. Only the one whose catalog
	// insert failed asks for the delete, the other may already be listed.
	used, err := d.Catalog.Referenced(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to check object references", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	if used {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "File is used by a catalog entry",
			"requestID": requestID,
		})
		return
	}

	if err := d.Uploader.Remove(c.Request.Context(), key); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "Failed to delete from storage",
			"requestID": requestID,
		})

		zap.L().Error("Failed to delete object", zap.String("requestID", requestID), zap.String("path", key), zap.Error(err))
		return
	}

	zap.L().Info("Deleted object", zap.String("requestID", requestID), zap.String("path", key))
	c.Status(http.StatusNoContent)
}
