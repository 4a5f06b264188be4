package resource

import (
	"bitwise74/course-archive/internal"
	"bitwise74/course-archive/internal/catalog"
	"bitwise74/course-archive/pkg/middleware"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ResourceDelete removes a catalog entry owned by the caller. The stored file
// stays where it is and remains reachable through the proxy.
func ResourceDelete(c *gin.Context, d *internal.Deps) {
	requestID := middleware.RequestID(c)
	who, _ := middleware.Identity(c)

	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "ID is missing",
			"requestID": requestID,
		})
		return
	}

	err := d.Catalog.Delete(c.Request.Context(), id, who)
	switch {
	case err == nil:
	case errors.Is(err, catalog.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Resource not found",
			"requestID": requestID,
		})
		return
	case errors.Is(err, catalog.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{
			"error":     "You can only delete your own uploads",
			"requestID": requestID,
		})
		return
	case errors.Is(err, catalog.ErrNoIdentity):
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":     "Please log in to continue",
			"requestID": requestID,
		})
		return
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to delete resource", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	zap.L().Info("Resource deleted", zap.String("requestID", requestID), zap.String("id", id), zap.String("email", who.Email))
	c.JSON(http.StatusOK, gin.H{"id": id})
}
