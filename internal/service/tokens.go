// Package service contains the business logic that sits between the
// HTTP handlers and the datastore
package service

import (
	"errors"
	"time"

	"bytekeep/auth-api/config"
	"bytekeep/auth-api/internal/model"
	"bytekeep/auth-api/pkg/security"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Token purposes. The purpose picks the TTL and the side effect that
// runs when the token is consumed.
const (
	PurposePasswordReset = "password_reset"
	PurposeEmailVerify   = "email_verify"
)

// ErrInvalidOrExpiredToken covers every way a presented token can be
// bad: unknown, expired, superseded or already used. Callers must not
// be able to tell those apart.
var ErrInvalidOrExpiredToken = errors.New("token invalid or expired")

type TokenService struct {
	DB        *gorm.DB
	Creds     *Credentials
	ResetTTL  time.Duration
	VerifyTTL time.Duration
}

func NewTokenService(db *gorm.DB, creds *Credentials, cfg *config.Config) *TokenService {
	return &TokenService{
		DB:        db,
		Creds:     creds,
		ResetTTL:  cfg.ResetTokenTTL,
		VerifyTTL: cfg.VerifyTokenTTL,
	}
}

func (s *TokenService) ttl(purpose string) time.Duration {
	if purpose == PurposeEmailVerify {
		return s.VerifyTTL
	}

	return s.ResetTTL
}

// Issue creates a new single-use token for the owner and returns the
// raw value. Only the fingerprint hits the database. The upsert on
// (owner_id, purpose) means a re-issued token silently replaces the
// previous one, which then fails verification.
func (s *TokenService) Issue(ownerID, purpose string) (string, error) {
	raw, err := security.GenerateToken()
	if err != nil {
		return "", err
	}

	tok := model.AuthToken{
		OwnerID:     ownerID,
		Purpose:     purpose,
		Fingerprint: security.Fingerprint(raw),
		ExpiresAt:   time.Now().Add(s.ttl(purpose)),
	}

	err = s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "purpose"}},
		DoUpdates: clause.AssignmentColumns([]string{"fingerprint", "expires_at", "updated_at"}),
	}).Create(&tok).Error
	if err != nil {
		return "", err
	}

	return raw, nil
}

// Verify checks a presented raw token without consuming it. A failed
// side effect afterwards (say, a rejected new password) doesn't burn
// the token. Returns the owner ID on success.
func (s *TokenService) Verify(rawToken, purpose string) (string, error) {
	fp := security.Fingerprint(rawToken)

	var ownerID string

	err := s.DB.
		Model(model.AuthToken{}).
		Where("fingerprint = ? AND purpose = ? AND expires_at > ?", fp, purpose, time.Now()).
		Select("owner_id").
		First(&ownerID).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidOrExpiredToken
		}

		return "", err
	}

	return ownerID, nil
}

// ConsumeReset burns a password reset token and applies the new
// credential. The owner is resolved with a plain read up front, the
// transaction itself opens with the single conditional delete: of two
// racing consumers exactly one sees RowsAffected == 1, the other gets
// ErrInvalidOrExpiredToken. No read happens inside the transaction,
// so concurrent consumers queue on the write lock instead of
// deadlocking on reads they're both holding.
func (s *TokenService) ConsumeReset(rawToken, newPassword string) error {
	fp := security.Fingerprint(rawToken)

	var ownerID string

	err := s.DB.
		Model(model.AuthToken{}).
		Where("fingerprint = ? AND purpose = ?", fp, PurposePasswordReset).
		Select("owner_id").
		First(&ownerID).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidOrExpiredToken
		}

		return err
	}

	// If the token gets superseded or consumed between the read and
	// here, the delete simply matches nothing and we fail the same way
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.deleteLive(tx, "", fp, PurposePasswordReset); err != nil {
			return err
		}

		return s.Creds.UpdatePassword(tx, ownerID, newPassword)
	})
}

// ConsumeVerification burns an email verification token and flips the
// owner's verified flag. The email scopes the delete so a token can't
// be replayed against a different address. Same structure as
// ConsumeReset: owner read up front, conditional delete as the first
// statement of the transaction.
func (s *TokenService) ConsumeVerification(rawToken, email string) error {
	fp := security.Fingerprint(rawToken)

	var user model.User

	err := s.DB.Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidOrExpiredToken
		}

		return err
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.deleteLive(tx, user.ID, fp, PurposeEmailVerify); err != nil {
			return err
		}

		return tx.Model(&model.User{}).
			Where("id = ?", user.ID).
			Update("verified", true).
			Error
	})
}

// deleteLive removes a live token row in a single conditional delete.
// RowsAffected != 1 means the token never existed, expired, was
// superseded or someone else consumed it first, all of which look the
// same to the caller. An empty ownerID skips the owner scope.
func (s *TokenService) deleteLive(tx *gorm.DB, ownerID, fingerprint, purpose string) error {
	q := tx.Where("fingerprint = ? AND purpose = ? AND expires_at > ?", fingerprint, purpose, time.Now())
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}

	res := q.Delete(&model.AuthToken{})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected != 1 {
		return ErrInvalidOrExpiredToken
	}

	return nil
}
