package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/khanghh/plantgate/internal/metrics"
	"github.com/khanghh/plantgate/internal/users"
	"github.com/khanghh/plantgate/params"
)

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`

	// identity the tokens were issued to
	Subject string `json:"-"`
	UserID  uint   `json:"-"`
}

// TokenService issues access and refresh tokens.
type TokenService struct {
	keys          *Keys
	store         users.CredentialStore
	resolver      Resolver
	parser        *jwt.Parser
	refreshTokens *refreshTokenStore
	options
}

func (s *TokenService) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(s.keys.Method, claims).SignedString(s.keys.PrivateKey)
}

// CreateAccessToken sets the expiry of claims to now+ttl and signs them. A
// non-positive ttl selects the configured access token lifetime.
func (s *TokenService) CreateAccessToken(claims AccessClaims, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = s.accessTokenTTL
	}
	expiresAt := s.now().Add(ttl).Truncate(time.Second)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	if claims.Scopes == nil {
		claims.Scopes = []PermissionScope{}
	}
	token, err := s.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	metrics.TokensIssued.WithLabelValues("access").Inc()
	return token, expiresAt, nil
}

func (s *TokenService) CreateRefreshToken(subject string) (string, time.Time, error) {
	expiresAt := s.now().Add(s.refreshTokenTTL).Truncate(time.Second)
	token, err := s.sign(RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	})
	if err != nil {
		return "", time.Time{}, err
	}
	metrics.TokensIssued.WithLabelValues("refresh").Inc()
	return token, expiresAt, nil
}

func newAccessClaims(subject string, resolved *ResolvedScopes) AccessClaims {
	return AccessClaims{
		Organizations:    Resources(resolved.Organizations...),
		Plants:           Resources(resolved.Plants...),
		Machines:         Resources(resolved.Machines...),
		Scopes:           resolved.Scopes,
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
	}
}

// IssueTokenPair authenticates email and password and issues a new access
// and refresh token for the user.
func (s *TokenService) IssueTokenPair(ctx context.Context, email string, password string) (*TokenPair, error) {
	var (
		pair    TokenPair
		subject string
	)
	err := s.store.Transaction(ctx, func(tx users.CredentialStore) error {
		user, err := users.NewUserService(tx).Authenticate(ctx, email, password)
		if errors.Is(err, users.ErrUserDisabled) {
			return newSubjectAuthenticationError(err.Error(), user.Email, user.ID)
		}
		if errors.Is(err, users.ErrInvalidCredentials) {
			return NewAuthenticationError(err.Error())
		}
		if err != nil {
			return err
		}
		resolved, err := s.resolver.Resolve(ctx, tx, user)
		if err != nil {
			return fmt.Errorf("resolve scopes of %s: %w", user.Email, err)
		}
		subject = user.Email
		pair.Subject, pair.UserID = user.Email, user.ID
		pair.AccessToken, pair.ExpiresAt, err = s.CreateAccessToken(newAccessClaims(subject, resolved), 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	pair.TokenType = params.TokenType
	if pair.RefreshToken, _, err = s.CreateRefreshToken(subject); err != nil {
		return nil, err
	}
	return &pair, nil
}

// AccessTokenFromRefreshToken issues a new access token for the subject of
// refreshToken with freshly resolved grants. The refresh token is returned
// unchanged unless rotation is enabled.
func (s *TokenService) AccessTokenFromRefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims := &RefreshClaims{}
	if _, err := s.parser.ParseWithClaims(refreshToken, claims, s.publicKey); err != nil {
		return nil, NewAuthenticationError(err.Error())
	}
	if claims.Subject == "" {
		return nil, NewAuthenticationError("refresh token has no subject")
	}
	// access tokens carry no jti and must not be accepted here
	if claims.ID == "" {
		return nil, newSubjectAuthenticationError("refresh token has no id", claims.Subject, 0)
	}

	if s.refreshTokens != nil {
		ok, err := s.refreshTokens.consume(ctx, claims.ID, claims.Subject, s.now(), claims.ExpiresAt.Time)
		if err != nil {
			return nil, fmt.Errorf("consume refresh token: %w", err)
		}
		if !ok {
			return nil, newSubjectAuthenticationError("refresh token already used", claims.Subject, 0)
		}
	}

	pair, err := s.refreshAccessToken(ctx, claims)
	if err == nil {
		pair.RefreshToken = refreshToken
		if s.refreshTokens != nil {
			pair.RefreshToken, _, err = s.CreateRefreshToken(claims.Subject)
		}
	}
	if err != nil {
		if s.refreshTokens != nil && !IsAuthenticationError(err) {
			if relErr := s.refreshTokens.release(ctx, claims.ID); relErr != nil {
				slog.Error("Failed to release refresh token", "sub", claims.Subject, "error", relErr)
			}
		}
		return nil, err
	}
	return pair, nil
}

func (s *TokenService) refreshAccessToken(ctx context.Context, claims *RefreshClaims) (*TokenPair, error) {
	pair := TokenPair{TokenType: params.TokenType, Subject: claims.Subject}
	err := s.store.Transaction(ctx, func(tx users.CredentialStore) error {
		user, err := tx.FindUserByEmail(ctx, claims.Subject)
		if errors.Is(err, users.ErrUserNotFound) {
			return newSubjectAuthenticationError("unknown user", claims.Subject, 0)
		}
		if err != nil {
			return err
		}
		if user.Disabled {
			return newSubjectAuthenticationError("user disabled", user.Email, user.ID)
		}
		pair.UserID = user.ID
		resolved, err := s.resolver.Resolve(ctx, tx, user)
		if err != nil {
			return fmt.Errorf("resolve scopes of %s: %w", user.Email, err)
		}
		pair.AccessToken, pair.ExpiresAt, err = s.CreateAccessToken(newAccessClaims(user.Email, resolved), 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

func (s *TokenService) publicKey(*jwt.Token) (any, error) {
	return s.keys.PublicKey, nil
}

func NewTokenService(keys *Keys, store users.CredentialStore, opts ...Option) *TokenService {
	s := &TokenService{
		keys:    keys,
		store:   store,
		options: newOptions(opts),
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{keys.Method.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if s.rotation != nil {
		s.refreshTokens = newRefreshTokenStore(s.rotation)
	}
	return s
}
