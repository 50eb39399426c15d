package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ysamarin/postline/backend/internal/common/constants"
	commonerrors "github.com/ysamarin/postline/backend/internal/common/errors"
)

type APIConfig struct {
	HTTPPort                string
	DatabaseURL             string
	JWTSecret               string
	AccessTokenTTL          time.Duration
	RefreshTokenTTL         time.Duration
	MaxRefreshTokensPerUser int
	RequestTimeout          time.Duration
	PageSize                int
	PasswordMinLength       int
}

func LoadAPIConfig() (APIConfig, error) {
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return APIConfig{}, err
	}

	if err := validateJWTSecret(jwtSecret); err != nil {
		return APIConfig{}, err
	}

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return APIConfig{}, err
	}

	return APIConfig{
		HTTPPort:                getEnv("API_HTTP_PORT", constants.DefaultHTTPPort),
		DatabaseURL:             databaseURL,
		JWTSecret:               jwtSecret,
		AccessTokenTTL:          getDurationEnv("ACCESS_TOKEN_TTL", constants.DefaultAccessTokenTTL),
		RefreshTokenTTL:         getDurationEnv("REFRESH_TOKEN_TTL", constants.DefaultRefreshTokenTTL),
		MaxRefreshTokensPerUser: getIntEnv("MAX_REFRESH_TOKENS_PER_USER", constants.DefaultMaxRefreshTokensPerUser),
		RequestTimeout:          getDurationEnv("API_REQUEST_TIMEOUT", constants.DefaultRequestTimeout),
		PageSize:                getIntEnv("API_PAGE_SIZE", constants.DefaultPageSize),
		PasswordMinLength:       getIntEnv("PASSWORD_MIN_LENGTH", constants.PasswordMinLength),
	}, nil
}

func validateJWTSecret(secret string) error {
	if len(secret) < constants.JWTSecretMinLength {
		return fmt.Errorf("%w: got %d bytes", commonerrors.ErrInvalidJWTSecret, len(secret))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func mustEnv(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", commonerrors.ErrMissingRequiredEnv, key)
	}
	return v, nil
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getIntEnv(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
