package root

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Validate answers 200 with the user ID if the JWT middleware let the
// request through
func Validate(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"userID": c.MustGet("userID").(string),
	})
}
