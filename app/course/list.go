// Package course contains the course listing endpoints
package course

import (
	"bitwise74/course-archive/internal"
	"bitwise74/course-archive/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CourseList returns every course with its resource count, optionally
// filtered by ?query=
func CourseList(c *gin.Context, d *internal.Deps) {
	requestID := middleware.RequestID(c)

	courses, err := d.Catalog.Courses(c.Request.Context(), c.Query("query"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to list courses", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, courses)
}
