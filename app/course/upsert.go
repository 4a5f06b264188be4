package course

import (
	"bitwise74/course-archive/internal"
	"bitwise74/course-archive/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type upsertBody struct {
	Name string `json:"name" binding:"required,max=128"`
}

// CourseUpsert creates or renames a course. Moderators only.
func CourseUpsert(c *gin.Context, d *internal.Deps) {
	requestID := middleware.RequestID(c)
	who, _ := middleware.Identity(c)

	if who == nil || !d.Config.IsModerator(who.Email) {
		c.JSON(http.StatusForbidden, gin.H{
			"error":     "Moderators only",
			"requestID": requestID,
		})
		return
	}

	var data upsertBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	course, err := d.Catalog.UpsertCourse(c.Request.Context(), c.Param("id"), data.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to save course", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, course)
}
