package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pildhora/backend/pkg/model"
	"go.uber.org/zap"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the authenticated identity extracted from a bearer token
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware verifies the Authorization bearer token and stores the
// authenticated user_id and role in the request context. Tokens are
// HMAC-signed; the subject is the user ID.
func AuthMiddleware(secret string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Missing bearer token",
			})
			return
		}

		claims, err := ParseToken(strings.TrimPrefix(header, "Bearer "), secret)
		if err != nil {
			logger.Warn("token rejected",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Invalid or expired token",
			})
			return
		}

		c.Set("user_id", claims.Subject)
		c.Set("user_role", string(claims.Role))

		c.Next()
	}
}

// ParseToken validates a signed token and returns its claims
func ParseToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Actor returns the authenticated user ID and role from the gin context
func Actor(c *gin.Context) (string, model.Role) {
	return c.GetString("user_id"), model.Role(c.GetString("user_role"))
}
