package jwt

import (
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/Khaos-s/car-pass/internal/domain"
)

// Claims is the JWT payload for access tokens. Subject carries the account ID.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	gojwt.RegisteredClaims
}

// Generator is responsible for signing and validating access tokens.
type Generator struct {
	secret    []byte
	accessTTL time.Duration
	issuer    string
}

// NewGenerator constructs a JWT generator signing with HS256.
func NewGenerator(secret string, accessTTL time.Duration, issuer string) *Generator {
	return &Generator{secret: []byte(secret), accessTTL: accessTTL, issuer: issuer}
}

// GenerateAccessToken produces a signed JWT for the account.
func (g *Generator) GenerateAccessToken(account domain.Account) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		Email: account.Email,
		Name:  account.Name,
		Role:  string(account.Role),
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   account.ID,
			Issuer:    g.issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			NotBefore: gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(g.accessTTL)),
		},
	}

	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken ensures the token is valid and returns its claims.
func (g *Generator) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := gojwt.ParseWithClaims(tokenString, &Claims{}, func(t *gojwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return g.secret, nil
	}, gojwt.WithIssuer(g.issuer))
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid access token claims")
	}
	return claims, nil
}
