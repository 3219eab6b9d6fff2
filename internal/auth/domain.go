package auth

import (
	"errors"
	"time"
)

// User represents an operator account.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ErrInvalidCredentials covers unknown accounts, inactive accounts and wrong
// passwords alike so the login response never leaks which one it was.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")
