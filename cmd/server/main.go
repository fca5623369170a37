package main

import (
	"context"
	"log"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"brand_backend/internal/app/router"
	"brand_backend/internal/config"
	authadapters "brand_backend/internal/feature/auth/adapters"
	authhandler "brand_backend/internal/feature/auth/transport/handler"
	authusecase "brand_backend/internal/feature/auth/usecase"
	"brand_backend/internal/feature/branddetect/adapters/gemini"
	"brand_backend/internal/feature/branddetect/adapters/vision"
	"brand_backend/internal/feature/branddetect/catalog"
	"brand_backend/internal/feature/branddetect/embedindex"
	"brand_backend/internal/feature/branddetect/textmatch"
	brandhandler "brand_backend/internal/feature/branddetect/transport/handler"
	brandusecase "brand_backend/internal/feature/branddetect/usecase"
	"brand_backend/internal/feature/branddetect/visualmatch"
	historyadapters "brand_backend/internal/feature/history/adapters"
	historyhandler "brand_backend/internal/feature/history/transport/handler"
	historyusecase "brand_backend/internal/feature/history/usecase"
	platformdb "brand_backend/internal/platform/db"
	jwtmw "brand_backend/internal/platform/jwt"
	platformredis "brand_backend/internal/platform/redis"
	"brand_backend/internal/shared/ratelimiter"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// db
	db := platformdb.OpenDB()

	// Redis
	var rdb *redisv9.Client
	if tmp, err := platformredis.NewRedisClient(); err != nil {
		log.Println("[WARN] Redis unavailable. Running without index cache.")
		rdb = nil
	} else {
		rdb = tmp
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Println("[ERROR] Failed to close Redis client:", err)
			}
		}()
	}

	// ブランドカタログ
	cat, err := catalog.Load(cfg.BrandsPath, cfg.LogosDir)
	if err != nil {
		log.Fatal("Failed to load brand catalog:", err)
	}
	log.Printf("Loaded brand catalog: %d brands (version %s)", cat.Len(), cat.Version()[:8])

	// 外部API（Vision / Gemini）
	limiter := ratelimiter.NewRateLimiter(60, time.Minute)

	var textExtractor brandusecase.TextExtractor
	var logoExtractor textmatch.LogoTextExtractor
	if vc, err := vision.NewClient(ctx, limiter); err != nil {
		log.Println("[WARN] Vision API unavailable. OCR is limited to pre-extracted text:", err)
	} else {
		textExtractor = vc
		logoExtractor = vc
	}

	var embedder embedindex.Embedder
	if ge, err := gemini.NewEmbedder(ctx, cfg.EmbedModel, limiter); err != nil {
		log.Println("[WARN] Gemini API unavailable. Visual matching is disabled:", err)
	} else {
		embedder = ge
	}

	// 埋め込みインデックス（キャッシュがあればウォームスタート）
	// キャッシュキーにモデル名を含め、モデル変更時に別次元の古いベクトルを
	// 掴まないようにする
	store := embedindex.NewStore(rdb, cfg.IndexTTL, "brandindex:"+cfg.EmbedModel)
	provider := embedindex.NewProvider(nil)
	if idx, ok, err := store.Load(ctx, cat.Version()); err != nil {
		log.Println("[WARN] Failed to load cached embedding index:", err)
	} else if ok {
		provider.Publish(idx)
		log.Printf("Restored embedding index from cache: %d brands", idx.Len())
	} else {
		log.Println("No cached embedding index. POST /v1/brand/index/rebuild to build one.")
	}

	// マッチャー
	textMatcher := textmatch.New(cat, logoExtractor)
	var visualMatcher brandusecase.VisualMatcher
	if embedder != nil {
		visualMatcher = visualmatch.New(provider, embedder)
	} else {
		visualMatcher = visualmatch.Disabled{}
	}

	// Repository
	userRepo := authadapters.NewUserRepository(db)
	recordRepo := historyadapters.NewRecordRepository(db)

	// Usecase
	jwtGen := jwtmw.NewGenerator(cfg.JWTSecret, cfg.JWTExpiration)
	authUC := authusecase.NewAuthUsecase(userRepo, jwtGen)
	detectUC := brandusecase.NewDetectUsecase(textMatcher, visualMatcher, textExtractor, brandusecase.Policy{
		OCRThreshold:    cfg.OCRThreshold,
		VisualThreshold: cfg.VisualThreshold,
		MinConfidence:   cfg.MinConfidence,
		CallTimeout:     cfg.DetectTimeout,
	})
	indexUC := brandusecase.NewIndexUsecase(cat, embedder, store, provider)
	historyUC := historyusecase.NewHistoryUsecase(recordRepo)

	// Handler
	authH := authhandler.NewAuthHandler(authUC)
	brandH := brandhandler.NewBrandDetectHandler(detectUC, indexUC, cat, historyUC)
	historyH := historyhandler.NewHistoryHandler(historyUC)

	// ルータ生成
	r := router.NewRouter(authH, brandH, historyH)

	// JWT_SECRETチェック（開発中の注意喚起）
	if cfg.JWTSecret == "" {
		log.Println("[WARN] JWT_SECRET is not set. Set a strong secret in production.")
	}

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
