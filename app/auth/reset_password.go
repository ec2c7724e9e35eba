package auth

import (
	"errors"
	"net/http"

	"bytekeep/auth-api/internal"
	"bytekeep/auth-api/internal/service"
	"bytekeep/auth-api/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type resetPasswordBody struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func ResetPassword(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data resetPasswordBody
	if err := c.ShouldBind(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})

		zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if data.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Token field can't be empty",
			"requestID": requestID,
		})
		return
	}

	// Validate the new password before touching the token, a rejected
	// password must not burn a perfectly good reset link
	if err := validators.PasswordValidator(data.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	err := d.Tokens.ConsumeReset(data.Token, data.Password)
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

		zap.L().Error("Failed to consume reset token", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    true,
		"message":   "Password updated successfully",
		"requestID": requestID,
	})
}
