package jwtmw

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextUserID は認証済みユーザーIDを保持するginコンテキストキーです。
const ContextUserID = "userID"

const bearerPrefix = "Bearer "

// AuthRequired はJWTを検証し、認証済みユーザーのみを通すginミドルウェアを返します。
// 検証に成功するとContextUserIDにユーザーIDをセットします。
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		secret := os.Getenv(EnvKeyJWTSecret)
		if secret == "" {
			// JWT_SECRET未設定はサーバー側の構成ミス
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server misconfigured"})
			return
		}

		userID, err := parseUserID(strings.TrimPrefix(auth, bearerPrefix), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// parseUserID はトークンの署名を検証し、subクレームからユーザーIDを取り出します。
func parseUserID(tokenStr, secret string) (uint, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		// HMAC以外の署名アルゴリズムは拒否する
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return 0, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("unexpected claims type")
	}
	// JSONの数値はfloat64としてデコードされる
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, errors.New("missing sub claim")
	}
	return uint(sub), nil
}
