package user

import (
	"errors"
	"time"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	CreatedAt    time.Time `json:"created_at"`
}

// ErrDuplicate covers both the username and the email unique constraints.
var ErrDuplicate = errors.New("username or email already exists")

var ErrNotFound = errors.New("user not found")
