package service

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bytekeep/auth-api/config"
	"bytekeep/auth-api/internal/model"
	"bytekeep/auth-api/pkg/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	// File backed with WAL, shared-cache in-memory DBs hand out table
	// lock errors under concurrent transactions
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", filepath.Join(t.TempDir(), "tokens.db"))

	db, err := gorm.Open(sqlite.Open(dsn))
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(model.User{}, model.AuthToken{}))

	return db
}

func testService(t *testing.T) (*TokenService, *gorm.DB) {
	t.Helper()

	db := testDB(t)

	cfg := &config.Config{
		ResetTokenTTL:  time.Hour,
		VerifyTokenTTL: 24 * time.Hour,
	}

	return NewTokenService(db, NewCredentials(security.New()), cfg), db
}

func makeUser(t *testing.T, db *gorm.DB, id, email string) {
	t.Helper()

	hash, err := security.New().GenerateFromPassword("old-password")
	require.NoError(t, err)

	require.NoError(t, db.Create(&model.User{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
	}).Error)
}

func TestIssueVerifyConsumeReset(t *testing.T) {
	s, db := testService(t)
	makeUser(t, db, "u1", "u1@example.com")

	raw, err := s.Issue("u1", PurposePasswordReset)
	require.NoError(t, err)
	require.Len(t, raw, 64)

	// The raw token must never be stored as-is
	var count int64
	require.NoError(t, db.Model(model.AuthToken{}).Where("fingerprint = ?", raw).Count(&count).Error)
	assert.Zero(t, count)

	ownerID, err := s.Verify(raw, PurposePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, "u1", ownerID)

	// Verifying alone must not consume
	_, err = s.Verify(raw, PurposePasswordReset)
	require.NoError(t, err)

	require.NoError(t, s.ConsumeReset(raw, "brand-new-password"))

	var user model.User
	require.NoError(t, db.Where("id = ?", "u1").First(&user).Error)

	ok, err := security.New().VerifyPasswd("brand-new-password", user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	// Single use: the second consume must fail with the generic error
	err = s.ConsumeReset(raw, "another-password")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	// And the password must not have changed again
	require.NoError(t, db.Where("id = ?", "u1").First(&user).Error)
	ok, err = security.New().VerifyPasswd("brand-new-password", user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyUnknownToken(t *testing.T) {
	s, _ := testService(t)

	_, err := s.Verify("deadbeef", PurposePasswordReset)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestVerifyExpiredToken(t *testing.T) {
	s, db := testService(t)
	makeUser(t, db, "u1", "u1@example.com")

	raw, err := s.Issue("u1", PurposePasswordReset)
	require.NoError(t, err)

	// Simulate the clock running past the TTL
	require.NoError(t, db.Model(model.AuthToken{}).
		Where("owner_id = ?", "u1").
		Update("expires_at", time.Now().Add(-time.Minute)).
		Error)

	_, err = s.Verify(raw, PurposePasswordReset)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	// Expired must be indistinguishable from never-issued
	_, unknownErr := s.Verify("deadbeef", PurposePasswordReset)
	assert.Equal(t, unknownErr, err)

	assert.ErrorIs(t, s.ConsumeReset(raw, "new-password-123"), ErrInvalidOrExpiredToken)
}

func TestVerifyWrongPurpose(t *testing.T) {
	s, db := testService(t)
	makeUser(t, db, "u1", "u1@example.com")

	raw, err := s.Issue("u1", PurposeEmailVerify)
	require.NoError(t, err)

	_, err = s.Verify(raw, PurposePasswordReset)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestReissueSupersedes(t *testing.T) {
	s, db := testService(t)
	makeUser(t, db, "u1", "u1@example.com")

	raw1, err := s.Issue("u1", PurposePasswordReset)
	require.NoError(t, err)

	raw2, err := s.Issue("u1", PurposePasswordReset)
	require.NoError(t, err)

	// Only one live token per (owner, purpose)
	var count int64
	require.NoError(t, db.Model(model.AuthToken{}).
		Where("owner_id = ? AND purpose = ?", "u1", PurposePasswordReset).
		Count(&count).
		Error)
	assert.EqualValues(t, 1, count)

	_, err = s.Verify(raw1, PurposePasswordReset)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	_, err = s.Verify(raw2, PurposePasswordReset)
	assert.NoError(t, err)
}

func TestIssueKeepsPurposesSeparate(t *testing.T) {
	s, db := testService(t)
	makeUser(t, db, "u1", "u1@example.com")

	rawReset, err := s.Issue("u1", PurposePasswordReset)
	require.NoError(t, err)

	rawVerify, err := s.Issue("u1", PurposeEmailVerify)
	require.NoError(t, err)

	// Issuing for one purpose must not clobber the other
	_, err = s.Verify(rawReset, PurposePasswordReset)
	assert.NoError(t, err)

	_, err = s.Verify(rawVerify, PurposeEmailVerify)
	assert.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(model.AuthToken{}).Where("owner_id = ?", "u1").Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestConsumeVerificationSetsVerified(t *testing.T) {
	s, db := testService(t)
	makeUser(t, db, "u1", "alice@example.com")

	raw, err := s.Issue("u1", PurposeEmailVerify)
	require.NoError(t, err)

	require.NoError(t, s.ConsumeVerification(raw, "alice@example.com"))

	var user model.User
	require.NoError(t, db.Where("id = ?", "u1").First(&user).Error)
	assert.True(t, user.Verified)

	// Re-using the token fails
	assert.ErrorIs(t, s.ConsumeVerification(raw, "alice@example.com"), ErrInvalidOrExpiredToken)
}

func TestConsumeVerificationWrongEmail(t *testing.T) {
	s, db := testService(t)
	makeUser(t, db, "u1", "alice@example.com")
	makeUser(t, db, "u2", "bob@example.com")

	raw, err := s.Issue("u1", PurposeEmailVerify)
	require.NoError(t, err)

	// Alice's token can't verify Bob
	assert.ErrorIs(t, s.ConsumeVerification(raw, "bob@example.com"), ErrInvalidOrExpiredToken)
	assert.ErrorIs(t, s.ConsumeVerification(raw, "nobody@example.com"), ErrInvalidOrExpiredToken)

	// Scoped right it still works
	require.NoError(t, s.ConsumeVerification(raw, "alice@example.com"))
}

func TestConcurrentConsumeExactlyOnce(t *testing.T) {
	s, db := testService(t)
	makeUser(t, db, "u1", "u1@example.com")

	raw, err := s.Issue("u1", PurposePasswordReset)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)

	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.ConsumeReset(raw, fmt.Sprintf("racing-password-%d", i))
		}(i)
	}

	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}

		// The loser must get the same generic error as any other bad
		// token, never a raw driver error
		assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	}

	assert.Equal(t, 1, succeeded)
}

func TestConcurrentVerificationConsumeExactlyOnce(t *testing.T) {
	s, db := testService(t)
	makeUser(t, db, "u1", "alice@example.com")

	raw, err := s.Issue("u1", PurposeEmailVerify)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)

	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.ConsumeVerification(raw, "alice@example.com")
		}(i)
	}

	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}

		assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	}

	assert.Equal(t, 1, succeeded)

	var user model.User
	require.NoError(t, db.Where("id = ?", "u1").First(&user).Error)
	assert.True(t, user.Verified)
}

func TestIssueTTLPerPurpose(t *testing.T) {
	s, db := testService(t)
	makeUser(t, db, "u1", "u1@example.com")

	_, err := s.Issue("u1", PurposePasswordReset)
	require.NoError(t, err)

	var resetTok model.AuthToken
	require.NoError(t, db.Where("owner_id = ? AND purpose = ?", "u1", PurposePasswordReset).First(&resetTok).Error)
	assert.WithinDuration(t, time.Now().Add(s.ResetTTL), resetTok.ExpiresAt, 5*time.Second)

	_, err = s.Issue("u1", PurposeEmailVerify)
	require.NoError(t, err)

	// Fresh struct, a populated primary key would leak into the query
	var verifyTok model.AuthToken
	require.NoError(t, db.Where("owner_id = ? AND purpose = ?", "u1", PurposeEmailVerify).First(&verifyTok).Error)
	assert.WithinDuration(t, time.Now().Add(s.VerifyTTL), verifyTok.ExpiresAt, 5*time.Second)
}
