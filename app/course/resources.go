package course

import (
	"bitwise74/course-archive/internal"
	"bitwise74/course-archive/internal/catalog"
	"bitwise74/course-archive/pkg/middleware"
	"bitwise74/course-archive/pkg/validators"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CourseResources returns the visible resources of a course grouped by type
func CourseResources(c *gin.Context, d *internal.Deps) {
	requestID := middleware.RequestID(c)

	courseID := validators.CourseID(c.Param("id"))
	if courseID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Course ID is missing",
			"requestID": requestID,
		})
		return
	}

	list, err := d.Catalog.ListByCourse(c.Request.Context(), courseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to list resources", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"course_id": courseID,
		"total":     len(list),
		"sections":  catalog.Group(list),
	})
}
