package auth

import (
	"errors"
	"net/http"

	"bytekeep/auth-api/internal"
	"bytekeep/auth-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Verify consumes an email verification token. This is the link from
// the mail, so on success we redirect the browser to the frontend
// instead of answering JSON.
func Verify(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No verification token provided",
			"requestID": requestID,
		})
		return
	}

	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No email provided",
			"requestID": requestID,
		})
		return
	}

	err := d.Tokens.ConsumeVerification(token, email)
	if err != nil {
		if errors.Is(err, service.ErrInvalidOrExpiredToken) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Token expired or invalid",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to consume verification token", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.Redirect(http.StatusFound, d.Config.FrontendURL+"/email-verified")
}
