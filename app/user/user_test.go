package user

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bytekeep/auth-api/config"
	"bytekeep/auth-api/internal"
	"bytekeep/auth-api/internal/model"
	"bytekeep/auth-api/internal/service"
	"bytekeep/auth-api/pkg/middleware"
	"bytekeep/auth-api/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubMailer struct {
	sends int
	fail  bool
}

func (m *stubMailer) SendPasswordReset(_, _ string) error { return m.send() }
func (m *stubMailer) SendVerification(_, _ string) error  { return m.send() }

func (m *stubMailer) send() error {
	m.sends++
	if m.fail {
		return service.ErrMailDisabled
	}
	return nil
}

func testDeps(t *testing.T, mailer service.Mailer) *internal.Deps {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", filepath.Join(t.TempDir(), "user.db"))

	db, err := gorm.Open(sqlite.Open(dsn))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.User{}, model.AuthToken{}))

	cfg := &config.Config{
		PublicURL:      "http://localhost:8080",
		FrontendURL:    "http://localhost:5173",
		JWTSecret:      "test-secret",
		ResetTokenTTL:  time.Hour,
		VerifyTokenTTL: 24 * time.Hour,
	}

	argon := security.New()

	return &internal.Deps{
		DB:     db,
		Config: cfg,
		Argon:  argon,
		Mailer: mailer,
		Tokens: service.NewTokenService(db, service.NewCredentials(argon), cfg),
	}
}

func testRouter(d *internal.Deps) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(middleware.NewRequestIDMiddleware())

	u := r.Group("/api/users")
	u.POST("", func(c *gin.Context) { UserRegister(c, d) })
	u.POST("/login", func(c *gin.Context) { UserLogin(c, d) })

	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestRegisterIssuesVerificationToken(t *testing.T) {
	mailer := &stubMailer{}
	d := testDeps(t, mailer)
	r := testRouter(d)

	w := postJSON(r, "/api/users", `{"email":"new@example.com","password":"password-123"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	userID, _ := body["userID"].(string)
	require.NotEmpty(t, userID)

	var user model.User
	require.NoError(t, d.DB.Where("id = ?", userID).First(&user).Error)
	assert.False(t, user.Verified)

	var count int64
	require.NoError(t, d.DB.Model(model.AuthToken{}).
		Where("owner_id = ? AND purpose = ?", userID, service.PurposeEmailVerify).
		Count(&count).
		Error)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, 1, mailer.sends)
}

func TestRegisterSurvivesMailFailure(t *testing.T) {
	mailer := &stubMailer{fail: true}
	d := testDeps(t, mailer)
	r := testRouter(d)

	// Delivery failing must not fail the request, the token is
	// already persisted and can be re-requested
	w := postJSON(r, "/api/users", `{"email":"new@example.com","password":"password-123"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	require.NoError(t, d.DB.Model(model.AuthToken{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	d := testDeps(t, &stubMailer{})
	r := testRouter(d)

	w := postJSON(r, "/api/users", `{"email":"dup@example.com","password":"password-123"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(r, "/api/users", `{"email":"dup@example.com","password":"password-456"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	d := testDeps(t, &stubMailer{})
	r := testRouter(d)

	w := postJSON(r, "/api/users", `{"email":"bad","password":"password-123"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/api/users", `{"email":"ok@example.com","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginFlow(t *testing.T) {
	d := testDeps(t, &stubMailer{})
	r := testRouter(d)

	w := postJSON(r, "/api/users", `{"email":"login@example.com","password":"password-123"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(r, "/api/users/login", `{"email":"login@example.com","password":"password-123"}`)
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	var gotAuth bool
	for _, c := range cookies {
		if c.Name == "auth_token" && c.Value != "" {
			gotAuth = true
		}
	}
	assert.True(t, gotAuth)

	w = postJSON(r, "/api/users/login", `{"email":"login@example.com","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Unknown email answers like a wrong password
	w = postJSON(r, "/api/users/login", `{"email":"ghost@example.com","password":"password-123"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
