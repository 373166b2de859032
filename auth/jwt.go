package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures token verification.
type JWTConfig struct {
	// Secret is the HMAC signing key (required).
	Secret []byte

	// Issuer is the expected token issuer (iss claim).
	Issuer string

	// Audience is the expected token audience (aud claim).
	Audience string

	// HeaderName is the header containing the token.
	// Default: "Authorization"
	HeaderName string

	// TokenPrefix is the prefix before the token in the header.
	// Default: "Bearer "
	TokenPrefix string
}

// Identity is the verified caller.
type Identity struct {
	Subject string
	Claims  jwt.MapClaims
}

// Verifier validates bearer tokens.
type Verifier struct {
	config JWTConfig
	parser *jwt.Parser
}

// NewVerifier creates a Verifier.
func NewVerifier(config JWTConfig) (*Verifier, error) {
	if len(config.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	// Apply defaults
	if config.HeaderName == "" {
		config.HeaderName = "Authorization"
	}
	if config.TokenPrefix == "" {
		config.TokenPrefix = "Bearer "
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}

	return &Verifier{config: config, parser: jwt.NewParser(opts...)}, nil
}

// HeaderName returns the header the token is read from.
func (v *Verifier) HeaderName() string {
	return v.config.HeaderName
}

// Verify validates the raw header value and returns the caller identity.
func (v *Verifier) Verify(header string) (*Identity, error) {
	if header == "" {
		return nil, ErrMissingCredentials
	}

	// Extract token
	tokenString := strings.TrimPrefix(header, v.config.TokenPrefix)
	if tokenString == header {
		return nil, ErrMissingCredentials
	}
	tokenString = strings.TrimSpace(tokenString)

	claims := jwt.MapClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.config.Secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenMalformed
	case err != nil:
		return nil, ErrInvalidCredentials
	case !token.Valid:
		return nil, ErrInvalidCredentials
	}

	sub, _ := claims.GetSubject()
	return &Identity{Subject: sub, Claims: claims}, nil
}
