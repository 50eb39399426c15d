package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	authdomain "github.com/ysamarin/postline/backend/internal/auth/domain"
	authrepo "github.com/ysamarin/postline/backend/internal/auth/repository"
	"github.com/ysamarin/postline/backend/internal/common/clock"
	"github.com/ysamarin/postline/backend/internal/common/constants"
	commoncrypto "github.com/ysamarin/postline/backend/internal/common/crypto"
	"github.com/ysamarin/postline/backend/internal/common/logger"
	userdomain "github.com/ysamarin/postline/backend/internal/user/domain"
	userrepo "github.com/ysamarin/postline/backend/internal/user/repository"
)

type AuthService struct {
	users            userrepo.Repository
	refreshTokens    authrepo.RefreshTokenRepository
	revokedTokens    authrepo.RevokedTokenRepository
	hasher           commoncrypto.PasswordHasher
	idGenerator      commoncrypto.IDGenerator
	issuer           *TokenIssuer
	clock            clock.Clock
	log              *logger.Logger
	refreshTokenTTL  time.Duration
	maxRefreshTokens int
}

func NewAuthService(
	users userrepo.Repository,
	refreshTokens authrepo.RefreshTokenRepository,
	revokedTokens authrepo.RevokedTokenRepository,
	hasher commoncrypto.PasswordHasher,
	idGenerator commoncrypto.IDGenerator,
	issuer *TokenIssuer,
	clk clock.Clock,
	refreshTokenTTL time.Duration,
	maxRefreshTokens int,
	log *logger.Logger,
) *AuthService {
	return &AuthService{
		users:            users,
		refreshTokens:    refreshTokens,
		revokedTokens:    revokedTokens,
		hasher:           hasher,
		idGenerator:      idGenerator,
		issuer:           issuer,
		clock:            clk,
		log:              log,
		refreshTokenTTL:  refreshTokenTTL,
		maxRefreshTokens: maxRefreshTokens,
	}
}

type LoginInput struct {
	Username string
	Password string
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (TokenPair, error) {
	s.log.WithFields(ctx, logger.Fields{
		"username": input.Username,
		"action":   "login_attempt",
	}).Info("login attempt")

	if input.Username == "" || input.Password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}

	user, err := s.users.FindByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			s.log.WithFields(ctx, logger.Fields{
				"username": input.Username,
				"action":   "login_user_not_found",
			}).Warn("login failed: not found")
			return TokenPair{}, ErrInvalidCredentials
		}
		s.log.WithFields(ctx, logger.Fields{
			"username": input.Username,
			"action":   "login_fetch_failed",
		}).Errorf("login failed: %v", err)
		return TokenPair{}, err
	}

	if err := s.hasher.Compare(user.PasswordHash, input.Password); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"username": input.Username,
			"action":   "login_invalid_password",
		}).Warn("login failed: invalid password")
		return TokenPair{}, ErrInvalidCredentials
	}

	accessToken, _, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := s.issueRefreshToken(ctx, user)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"username": input.Username,
			"user_id":  string(user.ID),
			"action":   "login_token_issue_failed",
		}).Errorf("login failed: token issue error: %v", err)
		return TokenPair{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"username": user.Username,
		"user_id":  string(user.ID),
		"action":   "login_success",
	}).Info("login success")

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refresh.RawToken,
	}, nil
}

// Refresh exchanges an outstanding refresh token for a new access token.
// The refresh token itself is not rotated: it stays valid until logout or
// expiry.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrInvalidRefreshToken
	}

	hash := hashRefreshToken(refreshToken)

	revoked, err := s.revokedTokens.IsRevoked(ctx, hash)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"action": "refresh_blacklist_check_failed",
		}).Errorf("refresh failed: blacklist check error: %v", err)
		return "", err
	}
	if revoked {
		s.log.WithFields(ctx, logger.Fields{
			"action": "refresh_token_revoked",
		}).Warn("refresh failed: token revoked")
		return "", ErrInvalidRefreshToken
	}

	stored, err := s.refreshTokens.FindByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, authrepo.ErrRefreshTokenNotFound) {
			s.log.WithFields(ctx, logger.Fields{
				"action": "refresh_token_not_found",
			}).Warn("refresh failed: not found")
			return "", ErrInvalidRefreshToken
		}
		s.log.WithFields(ctx, logger.Fields{
			"action": "refresh_token_lookup_failed",
		}).Errorf("refresh lookup failed: %v", err)
		return "", err
	}

	if s.clock.Now().After(stored.ExpiresAt) {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": stored.UserID,
			"action":  "refresh_token_expired",
		}).Warn("refresh failed: token expired")
		incrementRefreshTokensExpired()
		return "", ErrRefreshTokenExpired
	}

	user, err := s.users.FindByID(ctx, userdomain.ID(stored.UserID))
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			return "", ErrInvalidRefreshToken
		}
		s.log.WithFields(ctx, logger.Fields{
			"user_id": stored.UserID,
			"action":  "refresh_user_lookup_failed",
		}).Errorf("refresh failed: user lookup error: %v", err)
		return "", err
	}

	accessToken, _, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": stored.UserID,
			"action":  "refresh_token_issue_failed",
		}).Errorf("refresh failed: token issue error: %v", err)
		return "", err
	}

	incrementRefreshTokensUsed()
	s.log.WithFields(ctx, logger.Fields{
		"user_id": stored.UserID,
		"action":  "refresh_token_used",
	}).Info("refresh token used")

	return accessToken, nil
}

// Logout blacklists the given refresh token so further refresh attempts
// with it fail. The blacklist row inherits the token's expiry so cleanup
// can drop it once it would have died anyway.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return ErrRefreshTokenNotProvided
	}

	hash := hashRefreshToken(refreshToken)

	stored, err := s.refreshTokens.FindByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, authrepo.ErrRefreshTokenNotFound) {
			s.log.WithFields(ctx, logger.Fields{
				"action": "logout_token_not_found",
			}).Warn("logout failed: unknown refresh token")
			return ErrInvalidRefreshToken
		}
		s.log.WithFields(ctx, logger.Fields{
			"action": "logout_lookup_failed",
		}).Errorf("logout lookup failed: %v", err)
		return err
	}

	if s.clock.Now().After(stored.ExpiresAt) {
		return ErrInvalidRefreshToken
	}

	revoked, err := s.revokedTokens.IsRevoked(ctx, hash)
	if err != nil {
		return err
	}
	if revoked {
		return ErrInvalidRefreshToken
	}

	if err := s.revokedTokens.Revoke(ctx, hash, stored.UserID, stored.ExpiresAt); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": stored.UserID,
			"action":  "logout_revoke_failed",
		}).Errorf("logout revoke failed: %v", err)
		return err
	}

	incrementRefreshTokensRevoked()
	s.log.WithFields(ctx, logger.Fields{
		"user_id": stored.UserID,
		"action":  "refresh_token_revoked",
	}).Info("refresh token revoked")

	return nil
}

func (s *AuthService) issueRefreshToken(ctx context.Context, user userdomain.User) (authdomain.RefreshToken, error) {
	count, err := s.refreshTokens.CountByUserID(ctx, string(user.ID))
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(user.ID),
			"action":  "count_refresh_tokens_failed",
		}).Errorf("failed to count refresh tokens: %v", err)
		return authdomain.RefreshToken{}, err
	}

	if count >= s.maxRefreshTokens {
		if err := s.refreshTokens.DeleteOldestByUserID(ctx, string(user.ID)); err != nil {
			s.log.WithFields(ctx, logger.Fields{
				"user_id": string(user.ID),
				"action":  "delete_oldest_refresh_token_failed",
			}).Warnf("failed to delete oldest refresh token: %v", err)
		}
	}

	rawToken, err := generateRefreshToken()
	if err != nil {
		return authdomain.RefreshToken{}, err
	}

	id, err := s.idGenerator.NewID()
	if err != nil {
		return authdomain.RefreshToken{}, err
	}

	now := s.clock.Now()
	stored := authdomain.RefreshToken{
		ID:        id,
		TokenHash: hashRefreshToken(rawToken),
		UserID:    string(user.ID),
		ExpiresAt: now.Add(s.refreshTokenTTL),
		CreatedAt: now,
	}

	if err := s.refreshTokens.Create(ctx, stored); err != nil {
		return authdomain.RefreshToken{}, err
	}

	incrementRefreshTokensIssued()

	stored.RawToken = rawToken
	return stored, nil
}

func generateRefreshToken() (string, error) {
	b := make([]byte, constants.RefreshTokenSize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
