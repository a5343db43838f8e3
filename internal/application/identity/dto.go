package identity

import (
	"time"

	"github.com/soundfoundry/backend/internal/domain/identity"
)

// RegisterInput contains input for account registration
type RegisterInput struct {
	Email       string
	DisplayName string
	Password    string
}

// LoginInput contains input for signing in
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult is returned after a successful register or login
type AuthResult struct {
	AccessToken string
	ExpiresAt   time.Time
	TokenType   string
	User        *identity.User
}
