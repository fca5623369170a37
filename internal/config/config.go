// Package config はアプリケーション設定を環境変数から読み込みます。
package config

import (
	"os"
	"strconv"
	"time"
)

// Config はサーバー起動に必要な設定値です。
type Config struct {
	// Port はHTTPサーバーの待ち受けポートです。
	Port string
	// BrandsPath はブランドカタログJSONのパスです。
	BrandsPath string
	// LogosDir は参照ロゴ画像のルートディレクトリです。
	LogosDir string

	// OCRThreshold はテキスト一致の採用しきい値です。
	OCRThreshold float64
	// VisualThreshold は視覚的一致の報告しきい値です。
	VisualThreshold float64
	// MinConfidence は最終結果の最低確信度です。
	MinConfidence float64
	// DetectTimeout は外部API呼び出し1回あたりのタイムアウトです。
	DetectTimeout time.Duration

	// EmbedModel はGeminiの埋め込みモデル名です。
	EmbedModel string
	// IndexTTL はRedis上のインデックスキャッシュの有効期限です。0は無期限です。
	IndexTTL time.Duration

	// JWTSecret はJWT署名鍵です。空の場合は起動時に警告します。
	JWTSecret string
	// JWTExpiration はトークンの有効期間です。
	JWTExpiration time.Duration
}

// Load は環境変数からConfigを構築します。未設定の値にはデフォルトを適用します。
func Load() Config {
	return Config{
		Port:            getEnv("PORT", "8080"),
		BrandsPath:      getEnv("BRANDS_PATH", "brands.json"),
		LogosDir:        getEnv("LOGOS_DIR", "brand_logos"),
		OCRThreshold:    getEnvFloat("OCR_THRESHOLD", 0.70),
		VisualThreshold: getEnvFloat("CLIP_THRESHOLD", 0.50),
		MinConfidence:   getEnvFloat("MIN_CONFIDENCE", 0.50),
		DetectTimeout:   getEnvDuration("DETECT_TIMEOUT", 15*time.Second),
		EmbedModel:      getEnv("GEMINI_EMBED_MODEL", "multimodalembedding@001"),
		IndexTTL:        getEnvDuration("INDEX_CACHE_TTL", 0),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTExpiration:   getEnvDuration("JWT_EXPIRATION", 24*time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
