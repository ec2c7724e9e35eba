package service

import (
	"time"

	"bytekeep/auth-api/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TokenCleanup periodically deletes expired token rows. Purely a
// housekeeping job, expiry is enforced at lookup time regardless of
// whether this ever runs.
func TokenCleanup(t time.Duration, db *gorm.DB) {
	ticker := time.NewTicker(t)

	zap.L().Debug("Token cleanup attached", zap.Duration("tick_every", t))

	go func() {
		for range ticker.C {
			res := db.
				Where("expires_at < ?", time.Now()).
				Delete(&model.AuthToken{})
			if res.Error != nil {
				zap.L().Error("Failed to cleanup expired tokens", zap.Error(res.Error))
				continue
			}

			if res.RowsAffected > 0 {
				zap.L().Debug("Cleaned up expired tokens", zap.Int64("count", res.RowsAffected))
			}
		}
	}()
}
