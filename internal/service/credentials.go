package service

import (
	"errors"

	"bytekeep/auth-api/internal/model"
	"bytekeep/auth-api/pkg/security"

	"gorm.io/gorm"
)

// Credentials is the single entry point for changing a stored
// password without knowing the current one. Callers are expected to
// have authorized the change beforehand (via a verified reset token),
// there is no second code path that re-hashes manually.
type Credentials struct {
	Argon *security.ArgonHash
}

func NewCredentials(argon *security.ArgonHash) *Credentials {
	return &Credentials{Argon: argon}
}

func (c *Credentials) UpdatePassword(tx *gorm.DB, ownerID, newPassword string) error {
	hash, err := c.Argon.GenerateFromPassword(newPassword)
	if err != nil {
		return err
	}

	res := tx.Model(&model.User{}).
		Where("id = ?", ownerID).
		Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected != 1 {
		return errors.New("credential owner no longer exists")
	}

	return nil
}
