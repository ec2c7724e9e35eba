// Package auth contains the password reset and email verification endpoints
package auth

import (
	"fmt"
	"net/http"

	"bytekeep/auth-api/internal"
	"bytekeep/auth-api/internal/model"
	"bytekeep/auth-api/internal/service"
	"bytekeep/auth-api/pkg/security"
	"bytekeep/auth-api/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type forgotPasswordBody struct {
	Email      string `json:"email"`
	RedirectTo string `json:"redirectTo"`
}

// Whether or not the email is registered, the caller sees this exact
// response. Don't add any branch that changes the status code, the
// body shape or skips work in a way an attacker could time.
const forgotPasswordMessage = "If that email address is registered you will receive a password reset link shortly"

func ForgotPassword(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data forgotPasswordBody
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
			// Unknown email, answer exactly like the success case.
			// Do the token work anyway so the two paths can't be told
			// apart by response time either
			if raw, err := security.GenerateToken(); err == nil {
				security.Fingerprint(raw)
			}

			zap.L().Debug("Password reset requested for unknown email", zap.String("requestID", requestID))

			c.JSON(http.StatusOK, gin.H{
				"status":    true,
				"message":   forgotPasswordMessage,
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

	raw, err := d.Tokens.Issue(user.ID, service.PurposePasswordReset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to issue reset token", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	base := data.RedirectTo
	if base == "" {
		base = d.Config.FrontendURL + "/reset-password"
	}

	link := fmt.Sprintf("%v?token=%v", base, raw)

	// The token is persisted at this point, so a failed send is only
	// worth a warning. The user can request a new link and the fresh
	// token overwrites this one.
	if err := d.Mailer.SendPasswordReset(user.Email, link); err != nil {
		zap.L().Warn("Failed to send password reset email", zap.Error(err), zap.String("requestID", requestID))
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    true,
		"message":   forgotPasswordMessage,
		"requestID": requestID,
	})
}
