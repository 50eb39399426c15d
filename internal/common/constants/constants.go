package constants

import "time"

const (
	UsernameMaxLength  = 150
	PasswordMinLength  = 8
	PasswordMaxLength  = 72
	JWTSecretMinLength = 32
	RefreshTokenSize   = 32

	MaxContentLength      = 10000
	NameMaxLength         = 150
	EmailMaxLength        = 254
	DefaultMaxRequestSize = 1 << 20

	DefaultPageSize = 10
	MaxPageSize     = 100

	DBPoolMaxOpenConns    = 25
	DBPoolMinOpenConns    = 5
	DBPoolConnMaxLifetime = time.Hour
	DBPoolConnMaxIdleTime = 30 * time.Minute
	DBPoolHealthCheck     = time.Minute
	DBPoolConnectTimeout  = 5 * time.Second
	DBPoolMaxAttempts     = 10
	DBPoolRetryDelay      = time.Second
	DBPoolMetricsInterval = 30 * time.Second
	DBQueryTimeout        = 30 * time.Second

	ServerReadHeaderTimeout = 10 * time.Second
	ServerReadTimeout       = 30 * time.Second
	ServerWriteTimeout      = 30 * time.Second
	ServerIdleTimeout       = 120 * time.Second

	ShutdownTimeout = 30 * time.Second
	DrainTimeout    = 10 * time.Second

	TokenCleanupInterval = time.Hour

	DefaultHTTPPort                = "8080"
	DefaultRequestTimeout          = 5 * time.Second
	DefaultAccessTokenTTL          = 30 * time.Minute
	DefaultRefreshTokenTTL         = 7 * 24 * time.Hour
	DefaultMaxRefreshTokensPerUser = 5

	RateLimitCleanupInterval = 5 * time.Minute

	RateLimitLoginRequestsPerSecond    = 1
	RateLimitLoginBurst                = 5
	RateLimitRegisterRequestsPerSecond = 0.5
	RateLimitRegisterBurst             = 3
	RateLimitRefreshRequestsPerSecond  = 1
	RateLimitRefreshBurst              = 5
	RateLimitLogoutRequestsPerSecond   = 1
	RateLimitLogoutBurst               = 5
	RateLimitGeneralRequestsPerSecond  = 20
	RateLimitGeneralBurst              = 40

	LoggerMaxSize    = 100
	LoggerMaxBackups = 3
	LoggerMaxAge     = 28

	// FeedDateLayout renders creation dates as "02 January 2006".
	FeedDateLayout = "02 January 2006"
)

type TraceIDKeyType string

const TraceIDKey TraceIDKeyType = "trace_id"
