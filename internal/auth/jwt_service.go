package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAccessTokenTTL is used when no token lifetime is configured.
const DefaultAccessTokenTTL = 7 * 24 * time.Hour

// ErrInvalidToken wraps every validation failure. The underlying jwt error is
// kept in the chain.
var ErrInvalidToken = errors.New("jwt: invalid token")

// JWTConfig configures a JWTService.
type JWTConfig struct {
	Secret         string
	Issuer         string
	Audience       string
	AccessTokenTTL time.Duration
	Leeway         time.Duration
	Clock          func() time.Time
}

// Claims are the claims of an access token. UserID duplicates the subject
// under the same name the JSON API uses for user ids.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AccessTokenInput identifies the user a token is issued for.
type AccessTokenInput struct {
	UserID string
	Email  string
	Role   string
}

// JWTService issues and validates HS256 access tokens. There are no refresh tokens.
type JWTService struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

// NewJWTService requires a secret. The TTL defaults to DefaultAccessTokenTTL.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	svc := &JWTService{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.AccessTokenTTL,
		now:      cfg.Clock,
	}
	if svc.ttl <= 0 {
		svc.ttl = DefaultAccessTokenTTL
	}
	if svc.now == nil {
		svc.now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(svc.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	if svc.issuer != "" {
		opts = append(opts, jwt.WithIssuer(svc.issuer))
	}
	if svc.audience != "" {
		opts = append(opts, jwt.WithAudience(svc.audience))
	}
	svc.parser = jwt.NewParser(opts...)

	return svc, nil
}

// TTL reports the lifetime of issued tokens.
func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// SecretLength reports the signing secret size in bytes.
func (s *JWTService) SecretLength() int {
	return len(s.secret)
}

// GenerateAccessToken signs a token for input valid from now until now+TTL.
func (s *JWTService) GenerateAccessToken(input AccessTokenInput) (string, error) {
	if input.UserID == "" {
		return "", errors.New("jwt: user id is required")
	}

	issued := s.now()
	registered := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   input.UserID,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(issued),
		NotBefore: jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(s.ttl)),
	}
	if s.audience != "" {
		registered.Audience = jwt.ClaimStrings{s.audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:           input.UserID,
		Email:            input.Email,
		Role:             input.Role,
		RegisteredClaims: registered,
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken verifies signature, algorithm, expiry, issuer and
// audience. Failures match ErrInvalidToken.
func (s *JWTService) ValidateAccessToken(raw string) (*Claims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims := &Claims{}
	if _, err := s.parser.ParseWithClaims(raw, claims, s.key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}
	return claims, nil
}

func (s *JWTService) key(*jwt.Token) (any, error) {
	return s.secret, nil
}
