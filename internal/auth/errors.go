package auth

import "errors"

var (
	ErrNoCredentials = errors.New("auth: no credentials supplied")
	ErrInvalidToken  = errors.New("auth: invalid token")
	ErrTokenRevoked  = errors.New("auth: token revoked")
	ErrUserNotFound  = errors.New("auth: user not found")
)
