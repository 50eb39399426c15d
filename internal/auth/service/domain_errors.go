package service

import "errors"

var (
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrInvalidRefreshToken     = errors.New("invalid refresh token")
	ErrRefreshTokenExpired     = errors.New("refresh token expired")
	ErrRefreshTokenNotProvided = errors.New("refresh token not provided")
)
