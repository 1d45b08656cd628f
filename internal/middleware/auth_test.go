package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pildhora/backend/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject string, role model.Role, expiresAt time.Time) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func setupAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(testSecret, zap.NewNop()))
	r.GET("/whoami", func(c *gin.Context) {
		userID, role := Actor(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "role": string(role)})
	})
	return r
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	r := setupAuthRouter()

	token := signToken(t, testSecret, "user-123", model.RoleCaregiver, time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-123")
	assert.Contains(t, w.Body.String(), string(model.RoleCaregiver))
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	r := setupAuthRouter()

	tests := []struct {
		name   string
		header string
	}{
		{
			name:   "missing header",
			header: "",
		},
		{
			name:   "wrong scheme",
			header: "Basic dXNlcjpwYXNz",
		},
		{
			name:   "garbage token",
			header: "Bearer not-a-token",
		},
		{
			name:   "wrong signing key",
			header: "Bearer " + signToken(t, "other-secret", "user-123", model.RolePatient, time.Now().Add(time.Hour)),
		},
		{
			name:   "expired token",
			header: "Bearer " + signToken(t, testSecret, "user-123", model.RolePatient, time.Now().Add(-time.Minute)),
		},
		{
			name:   "missing subject",
			header: "Bearer " + signToken(t, testSecret, "", model.RolePatient, time.Now().Add(time.Hour)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
		})
	}
}

func TestParseToken_RoundTrip(t *testing.T) {
	token := signToken(t, testSecret, "patient-1", model.RolePatient, time.Now().Add(time.Hour))

	claims, err := ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "patient-1", claims.Subject)
	assert.Equal(t, model.RolePatient, claims.Role)
}
