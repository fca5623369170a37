package jwtmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// newProtectedRouter はAuthRequired配下にユーザーIDを返すだけのルートを組み立てます。
func newProtectedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthRequired(), func(c *gin.Context) {
		userID, _ := c.Get(ContextUserID)
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})
	return r
}

func request(t *testing.T, r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	t.Setenv(EnvKeyJWTSecret, testSecret)
	r := newProtectedRouter()

	t.Run("valid token", func(t *testing.T) {
		token, err := NewGenerator(testSecret, time.Hour).GenerateToken(42, "test@example.com")
		require.NoError(t, err)

		rec := request(t, r, "Bearer "+token)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"user_id":42`)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := request(t, r, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		rec := request(t, r, "Basic abc")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong signature", func(t *testing.T) {
		token, err := NewGenerator("other-secret", time.Hour).GenerateToken(42, "test@example.com")
		require.NoError(t, err)

		rec := request(t, r, "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := NewGenerator(testSecret, -time.Hour).GenerateToken(42, "test@example.com")
		require.NoError(t, err)

		rec := request(t, r, "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing sub claim", func(t *testing.T) {
		raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "x@example.com"})
		token, err := raw.SignedString([]byte(testSecret))
		require.NoError(t, err)

		rec := request(t, r, "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthRequired_NoSecret(t *testing.T) {
	t.Setenv(EnvKeyJWTSecret, "")
	r := newProtectedRouter()

	rec := request(t, r, "Bearer whatever")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
