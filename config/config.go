// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	validLogLevels = []string{"debug", "info", "warn", "error", "fatal"}
	validDBDrivers = []string{"sqlite", "postgres"}
)

// Config holds every setting the app needs. It's built once by Setup
// and passed by reference into the handlers, so nothing reads viper
// (or the environment) after startup.
type Config struct {
	LogLevel string
	Port     int

	// PublicURL is where this service is reachable from the outside,
	// used to build verification links. FrontendURL is where the web
	// app lives, used for reset links and post-verify redirects.
	PublicURL   string
	FrontendURL string

	MailSender string
	MailAPIKey string

	JWTSecret string

	DBDriver string
	DBDSN    string

	ResetTokenTTL  time.Duration
	VerifyTokenTTL time.Duration

	RateLimit int
}

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() (*Config, error) {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "app_log_level")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.public_url", "host_public_url")

	v.BindEnv("frontend.base_url", "frontend_base_url")

	v.BindEnv("jwt.secret", "jwt_secret")

	v.BindEnv("mail.sender", "mail_sender")
	v.BindEnv("mail.api_key", "mail_api_key")

	v.BindEnv("database.driver", "database_driver")
	v.BindEnv("database.dsn", "database_dsn")

	v.BindEnv("token.reset_ttl", "token_reset_ttl")
	v.BindEnv("token.verify_ttl", "token_verify_ttl")

	v.BindEnv("security.rate_limit", "security_rate_limit")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.public_url", "http://localhost:8080")

	v.SetDefault("frontend.base_url", "http://localhost:5173")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "database.db")

	v.SetDefault("token.reset_ttl", "1h")
	v.SetDefault("token.verify_ttl", "24h")

	v.SetDefault("security.rate_limit", 10)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file, %w", err)
		}
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return nil, errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return nil, errors.New("invalid port provided")
	}

	if v.GetString("jwt.secret") == "" {
		fmt.Println("WARNING: You haven't set a JWT secret, so it has been generated for you. Please set it as an environment variable or in the config.toml file.\nYour random JWT secret:\n\n" + genSecret() + "\n\nPaste it into your config.toml file.")
		os.Exit(0)
	}

	if !slices.Contains(validDBDrivers, v.GetString("database.driver")) {
		return nil, errors.New("invalid database driver provided")
	}

	if v.GetString("database.dsn") == "" {
		return nil, errors.New("database dsn can't be empty")
	}

	if v.GetString("mail.sender") == "" {
		return nil, errors.New("mail sender address can't be empty")
	}

	if v.GetString("mail.api_key") == "" {
		zap.L().Warn("No mail API key set, emails will be logged instead of sent")
	}

	resetTTL := v.GetDuration("token.reset_ttl")
	if resetTTL <= 0 {
		return nil, errors.New("token.reset_ttl must be bigger than 0")
	}

	verifyTTL := v.GetDuration("token.verify_ttl")
	if verifyTTL <= 0 {
		return nil, errors.New("token.verify_ttl must be bigger than 0")
	}

	if v.GetInt("security.rate_limit") <= 0 {
		return nil, errors.New("security.rate_limit must be bigger than 0")
	}

	return &Config{
		LogLevel:       v.GetString("app.log_level"),
		Port:           v.GetInt("host.port"),
		PublicURL:      v.GetString("host.public_url"),
		FrontendURL:    v.GetString("frontend.base_url"),
		MailSender:     v.GetString("mail.sender"),
		MailAPIKey:     v.GetString("mail.api_key"),
		JWTSecret:      v.GetString("jwt.secret"),
		DBDriver:       v.GetString("database.driver"),
		DBDSN:          v.GetString("database.dsn"),
		ResetTokenTTL:  resetTTL,
		VerifyTokenTTL: verifyTTL,
		RateLimit:      v.GetInt("security.rate_limit"),
	}, nil
}
