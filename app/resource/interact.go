package resource

import (
	"bitwise74/course-archive/internal"
	"bitwise74/course-archive/internal/catalog"
	"bitwise74/course-archive/internal/model"
	"bitwise74/course-archive/pkg/middleware"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func ResourceUpvote(c *gin.Context, d *internal.Deps) {
	interact(c, d, model.ActionUpvote)
}

func ResourceReport(c *gin.Context, d *internal.Deps) {
	interact(c, d, model.ActionReport)
}

func interact(c *gin.Context, d *internal.Deps, action string) {
	requestID := middleware.RequestID(c)
	who, _ := middleware.Identity(c)

	upvotes, err := d.Catalog.Interact(c.Request.Context(), c.Param("id"), who, action)
	switch {
	case err == nil:
	case errors.Is(err, catalog.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Resource not found",
			"requestID": requestID,
		})
		return
	case errors.Is(err, catalog.ErrAlreadyInteracted):
		msg := "You already upvoted this resource"
		if action == model.ActionReport {
			msg = "You already reported this resource"
		}

		c.JSON(http.StatusConflict, gin.H{
			"error":     msg,
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

		zap.L().Error("Failed to record interaction", zap.String("requestID", requestID), zap.String("action", action), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      c.Param("id"),
		"action":  action,
		"upvotes": upvotes,
	})
}
