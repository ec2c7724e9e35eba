// Package app wires the endpoints, middleware and shared dependencies
package app

import (
	"fmt"
	"time"

	"bytekeep/auth-api/app/auth"
	"bytekeep/auth-api/app/root"
	"bytekeep/auth-api/app/user"
	"bytekeep/auth-api/config"
	"bytekeep/auth-api/db"
	"bytekeep/auth-api/internal"
	"bytekeep/auth-api/internal/service"
	"bytekeep/auth-api/pkg/middleware"
	"bytekeep/auth-api/pkg/security"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

var store = persist.NewMemoryStore(time.Minute)

func NewRouter(cfg *config.Config) (*gin.Engine, error) {
	makeLogger()

	conn, err := db.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	argon := security.New()

	d := &internal.Deps{
		DB:     conn,
		Config: cfg,
		Argon:  argon,
		Mailer: service.NewMailer(cfg),
		Tokens: service.NewTokenService(conn, service.NewCredentials(argon), cfg),
	}

	router := gin.New()

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     []string{cfg.FrontendURL},
			AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	jwt := middleware.NewJWTMiddleware(conn, cfg.JWTSecret)
	rateLimiter := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit,
		Burst:             cfg.RateLimit * 2,
		CleanupInterval:   time.Second,
	})
	bodyLimit := middleware.BodySizeLimiter(1 << 20)

	m := router.Group("/api", rateLimiter)
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		m.HEAD("/heartbeat", root.Heartbeat)

		// GET /api/validate		-> Validates a JWT token
		m.GET("/validate", jwt, root.Validate)
	}

	u := m.Group("/users", bodyLimit)
	{
		// GET /api/users		-> Returns the basic info of a user
		u.GET("", jwt, cacheFor(30), func(c *gin.Context) { user.UserFetch(c, d) })

		// POST /api/users 		-> Registers a new user
		u.POST("", func(c *gin.Context) { user.UserRegister(c, d) })

		// POST /api/users/login 	-> Logs in a user and returns a JWT token
		u.POST("/login", func(c *gin.Context) { user.UserLogin(c, d) })
	}

	a := router.Group("/auth", rateLimiter, bodyLimit)
	{
		// POST /auth/forgot-password		-> Issues a password reset token
		a.POST("/forgot-password", func(c *gin.Context) { auth.ForgotPassword(c, d) })

		// POST /auth/reset-password		-> Consumes a reset token and sets the new password
		a.POST("/reset-password", func(c *gin.Context) { auth.ResetPassword(c, d) })

		// POST /auth/request-verification	-> Issues a fresh email verification token
		a.POST("/request-verification", func(c *gin.Context) { auth.RequestVerification(c, d) })

		// GET /auth/verify			-> Consumes a verification token from a mailed link
		a.GET("/verify", func(c *gin.Context) { auth.Verify(c, d) })
	}

	// Expired tokens are rejected at lookup time anyway, the sweep
	// just keeps the table from growing
	service.TokenCleanup(time.Hour, conn)

	return router, nil
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}

func cacheFor(sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(store, time.Second*time.Duration(sec))
}
