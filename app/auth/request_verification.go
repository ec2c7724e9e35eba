package auth

import (
	"fmt"
	"net/http"
	"net/url"

	"bytekeep/auth-api/internal"
	"bytekeep/auth-api/internal/model"
	"bytekeep/auth-api/internal/service"
	"bytekeep/auth-api/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type requestVerificationBody struct {
	Email string `json:"email"`
}

// RequestVerification issues a fresh verification token for an
// unverified account. Unlike forgot-password this endpoint may admit
// the email is unknown, you can only reach it sensibly for an account
// you just created.
func RequestVerification(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data requestVerificationBody
	if err := c.ShouldBind(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})

		zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if err := validators.EmailValidator(data.Email); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	var user model.User

	err := d.DB.Where("email = ?", data.Email).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "User not found",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to look up user", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if user.Verified {
		c.JSON(http.StatusOK, gin.H{
			"ok":        true,
			"message":   "Email already verified",
			"requestID": requestID,
		})
		return
	}

	raw, err := d.Tokens.Issue(user.ID, service.PurposeEmailVerify)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to issue verification token", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	link := VerificationLink(d.Config.PublicURL, raw, user.Email)

	if err := d.Mailer.SendVerification(user.Email, link); err != nil {
		zap.L().Warn("Failed to send verification email", zap.Error(err), zap.String("requestID", requestID))
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"requestID": requestID,
	})
}

// VerificationLink builds the GET /auth/verify link mailed to users
func VerificationLink(publicURL, rawToken, email string) string {
	return fmt.Sprintf("%v/auth/verify?token=%v&email=%v", publicURL, rawToken, url.QueryEscape(email))
}
