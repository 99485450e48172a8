package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL defines the fallback validity period for access tokens.
const DefaultAccessTokenTTL = time.Hour

// DefaultRefreshTokenTTL defines the fallback validity period for refresh tokens.
const DefaultRefreshTokenTTL = 7 * 24 * time.Hour

var (
	// ErrTokenInvalid is returned when a token cannot be parsed or carries a
	// bad signature.
	ErrTokenInvalid = errors.New("token is invalid")
	// ErrTokenExpired is returned when a structurally valid token is past its
	// expiry.
	ErrTokenExpired = errors.New("token has expired")
)

// TokenConfig bundles the configuration required to build a TokenService.
type TokenConfig struct {
	Secret          string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Clock           func() time.Time
}

// Claims represents the custom claims embedded in issued access tokens.
type Claims struct {
	StudentNumber string `json:"student_number"`
	Email         string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and validates the portal's access tokens and generates
// the opaque secondary tokens (refresh tokens and short email codes).
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService constructs a TokenService from the supplied configuration.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token: secret must be provided")
	}

	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}

	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &TokenService{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        now,
	}, nil
}

// AccessTokenTTL reports the configured access token lifetime.
func (s *TokenService) AccessTokenTTL() time.Duration { return s.accessTTL }

// RefreshTokenTTL reports the configured refresh token lifetime.
func (s *TokenService) RefreshTokenTTL() time.Duration { return s.refreshTTL }

// GenerateAccessToken issues a signed HS256 JWT for the given student.
func (s *TokenService) GenerateAccessToken(studentNumber, email string) (string, error) {
	if studentNumber == "" {
		return "", errors.New("token: student number is required")
	}

	now := s.now()
	claims := &Claims{
		StudentNumber: studentNumber,
		Email:         email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   studentNumber,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}

	return signed, nil
}

// ValidateAccessToken parses and validates a signed JWT. Expired tokens are
// reported as ErrTokenExpired; every other failure maps to ErrTokenInvalid.
func (s *TokenService) ValidateAccessToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrTokenInvalid
	}

	if claims.StudentNumber == "" {
		return nil, ErrTokenInvalid
	}

	return &claims, nil
}

// NewRefreshToken generates a 64-character hex refresh token from 32 bytes of
// randomness. Only the SHA-256 digest of the token is ever stored.
func (s *TokenService) NewRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: refresh entropy: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashRefreshToken returns the hex SHA-256 digest used as the storage key for
// a refresh token.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewShortCode generates an 8-character uppercase hex code used for email
// verification and password reset links.
func (s *TokenService) NewShortCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: code entropy: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
