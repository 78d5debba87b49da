package params

import "time"

const (
	ServerBodyLimit         = 1048576 // 1 MiB
	ServerIdleTimeout       = 30 * time.Second
	ServerReadTimeout       = 10 * time.Second
	ServerWriteTimeout      = 10 * time.Second
	RefreshTokenKeyPrefix   = "rt:"
	AccessTokenExpiration   = 30 * time.Minute    // default access token lifetime
	RefreshTokenExpiration  = 14 * 24 * time.Hour // default refresh token lifetime
	TokenType               = "bearer"
	WildcardResource        = "*"
	ExternalAssertionExpiry = 30 * time.Second // lifetime of the signed assertion sent to the identity provider
	ExternalTokenCacheTTL   = 1 * time.Minute  // how long an exchanged bearer credential is served from cache
	ExternalHTTPTimeout     = 15 * time.Second
	ExternalTokenPath       = "/services/oauth2/token"
	HealthCheckServerAddr   = ":3001" // health check server address
	GeneratedRSAKeyBits     = 2048
	DefaultPrivateKeyPath   = "keys/jwt_private_key.pem"
	DefaultPublicKeyPath    = "keys/jwt_public_key.pem"
	AuthorizedUserKey       = "authorizedUser"
	APIVersion              = "1.0"
)
