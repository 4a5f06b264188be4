package auth

import (
	"bitwise74/course-archive/internal"
	"net/http"

	"github.com/gin-gonic/gin"
)

func AuthLogout(c *gin.Context, d *internal.Deps) {
	d.Sessions.Terminate(c)
	c.Status(http.StatusNoContent)
}
