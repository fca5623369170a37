package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authhandler "brand_backend/internal/feature/auth/transport/handler"
	brandhandler "brand_backend/internal/feature/branddetect/transport/handler"
	historyhandler "brand_backend/internal/feature/history/transport/handler"
	jwtmw "brand_backend/internal/platform/jwt"
)

func NewRouter(authHandler *authhandler.AuthHandler, brand *brandhandler.BrandDetectHandler,
	history *historyhandler.HistoryHandler) *gin.Engine {
	r := gin.Default()

	// 認証不要
	// 導通確認用
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	// 新規ユーザー登録
	r.POST("/signup", authHandler.Signup)
	// ログイン（JWT 発行）
	r.POST("/login", authHandler.Login)

	// 認証必須のルート
	// r.Group("/v1") でルートグループを作成
	v1 := r.Group("/v1")
	// jwtmw.AuthRequired() ミドルウェアを適用
	// → リクエストヘッダーに JWT が必要になる
	v1.Use(jwtmw.AuthRequired())
	{
		v1.POST("/brand/detect", brand.Detect)
		v1.GET("/brand/catalog", brand.ListCatalog)
		v1.POST("/brand/index/rebuild", brand.RebuildIndex)
		v1.GET("/history", history.List)
		v1.DELETE("/history/:id", history.Delete)
	}

	return r
}
