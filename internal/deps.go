package internal

import (
	"bytekeep/auth-api/config"
	"bytekeep/auth-api/internal/service"
	"bytekeep/auth-api/pkg/security"

	"gorm.io/gorm"
)

type Deps struct {
	DB     *gorm.DB
	Config *config.Config
	Argon  *security.ArgonHash
	Mailer service.Mailer
	Tokens *service.TokenService
}
