// Package middleware holds the gin middleware shared by every route:
// authentication, rate limiting, CORS, access logging and error rendering.
package middleware

import (
	"errors"
	"strings"
	"time"

	"travelmate/backend/internal/apperr"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	userIDKey = "userId"
	issuer    = "travelmate-backend"
)

// Claims is the bearer token payload. Tokens are issued by the identity
// provider; GenerateToken exists for tooling and tests.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func GenerateToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func ValidateToken(secret []byte, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Auth requires a valid "Authorization: Bearer" token.
func Auth(secret []byte) gin.HandlerFunc {
	return authenticate(secret, false)
}

// QueryAuth also accepts the token as ?token=, for WebSocket handshakes
// where browsers cannot set headers.
func QueryAuth(secret []byte) gin.HandlerFunc {
	return authenticate(secret, true)
}

func authenticate(secret []byte, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearer(c.GetHeader("Authorization"))
		if tokenString == "" && allowQuery {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			WriteError(c, apperr.Unauthorized("authorization token required"))
			return
		}

		claims, err := ValidateToken(secret, tokenString)
		if err != nil {
			WriteError(c, apperr.Unauthorized("invalid or expired token"))
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

func bearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// UserID returns the authenticated user of the request.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
