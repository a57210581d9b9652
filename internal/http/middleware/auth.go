package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Khaos-s/car-pass/internal/jwt"
)

const claimsKey = "accessClaims"

// Auth validates Authorization headers and attaches claims.
type Auth struct {
	JWT *jwt.Generator
}

func NewAuth(generator *jwt.Generator) *Auth {
	return &Auth{JWT: generator}
}

// ValidateJWT ensures the request carries a valid bearer token.
func (m *Auth) ValidateJWT(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authorization header required"})
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Bearer token required"})
		return
	}
	claims, err := m.JWT.ValidateAccessToken(parts[1])
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid or expired token"})
		return
	}
	c.Set(claimsKey, claims)
	c.Next()
}

// GetClaims exposes validated access token claims to handlers.
func GetClaims(c *gin.Context) (*jwt.Claims, bool) {
	value, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*jwt.Claims)
	return claims, ok
}
