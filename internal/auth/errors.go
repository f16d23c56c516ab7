package auth

import (
	"errors"

	"github.com/rs/zerolog"
)

var authLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	authLogger = l
}

var (
	ErrNoCredentials      = errors.New("No authorization header")
	ErrUnauthorized       = errors.New("Unauthorized")
	ErrForbidden          = errors.New("Unauthorized - Admin access required")
	ErrInvalidCredentials = errors.New("Invalid login credentials")
	ErrEmailNotAllowed    = errors.New("This email is not authorized to create an admin account")
	ErrMaxAdmins          = errors.New("Maximum number of admins reached")
	ErrEmailTaken         = errors.New("An account with this email already exists")
	ErrWeakPassword       = errors.New("Password must be at least 8 characters")

	// ErrProfileMissing means the identity exists but its profile has not been provisioned yet.
	ErrProfileMissing = errors.New("Account setup is not finished yet, try again shortly")
)
