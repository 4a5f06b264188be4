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

type visibilityBody struct {
	Hidden *bool `json:"hidden" binding:"required"`
}

// ResourceVisibility hides or restores a resource. Moderators only.
func ResourceVisibility(c *gin.Context, d *internal.Deps) {
	requestID := middleware.RequestID(c)
	who, _ := middleware.Identity(c)

	if who == nil || !d.Config.IsModerator(who.Email) {
		c.JSON(http.StatusForbidden, gin.H{
			"error":     "Moderators only",
			"requestID": requestID,
		})
		return
	}

	var data visibilityBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	id := c.Param("id")
	if err := d.Catalog.SetHidden(c.Request.Context(), id, *data.Hidden); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "Resource not found",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to update visibility", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	zap.L().Info("Resource visibility changed",
		zap.String("requestID", requestID),
		zap.String("id", id),
		zap.Bool("hidden", *data.Hidden),
		zap.String("moderator", who.Email),
	)

	c.JSON(http.StatusOK, gin.H{"id": id, "is_hidden": *data.Hidden})
}
