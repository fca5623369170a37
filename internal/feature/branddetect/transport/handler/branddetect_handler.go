// Package handler はbranddetectフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"brand_backend/internal/api"
	"brand_backend/internal/feature/branddetect/catalog"
	"brand_backend/internal/feature/branddetect/domain/entity"
	jwtmw "brand_backend/internal/platform/jwt"
)

// DetectUsecase はハイブリッドブランド検出のユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type DetectUsecase interface {
	Detect(ctx context.Context, imageData []byte, preText string) (*entity.DetectionResult, error)
}

// IndexUsecase は埋め込みインデックス再構築のユースケースインターフェースを定義します。
type IndexUsecase interface {
	Rebuild(ctx context.Context) (int, error)
}

// HistoryRecorder は検出結果の履歴保存を抽象化します。
// 保存はベストエフォートで、失敗しても検出レスポンスには影響しません。
type HistoryRecorder interface {
	Record(ctx context.Context, userID uint, imageName string, result *entity.DetectionResult) error
}

// BrandDetectHandler はブランド検出関連のHTTPリクエストを処理します。
type BrandDetectHandler struct {
	detect  DetectUsecase
	index   IndexUsecase
	cat     *catalog.Catalog
	history HistoryRecorder
}

// NewBrandDetectHandler はBrandDetectHandlerの新しいインスタンスを生成します。
// historyはnil可で、その場合履歴は保存されません。
func NewBrandDetectHandler(detect DetectUsecase, index IndexUsecase, cat *catalog.Catalog, history HistoryRecorder) *BrandDetectHandler {
	return &BrandDetectHandler{detect: detect, index: index, cat: cat, history: history}
}

// Detect は画像をアップロードしてブランドを検出します。
//
// エンドポイント: POST /v1/brand/detect
// Content-Type: multipart/form-data
// フィールド: image（画像ファイル、最大10MB）、ocr_text（事前抽出テキスト、任意）
//
// デコード可能なリクエストに対しては常にDetectionResponseを返します。
// 単一の不良画像で例外を伝播させることはありません。
func (h *BrandDetectHandler) Detect(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		slog.Warn("画像ファイルの取得に失敗", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "画像ファイルが必要です"})
		return
	}

	f, err := file.Open()
	if err != nil {
		slog.Error("画像ファイルのオープンに失敗", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "画像の読み込みに失敗しました"})
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("画像ファイルのクローズに失敗", "error", err)
		}
	}()

	imageData, err := io.ReadAll(f)
	if err != nil {
		slog.Error("画像データの読み取りに失敗", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "画像の読み込みに失敗しました"})
		return
	}

	preText := c.PostForm("ocr_text")

	result, err := h.detect.Detect(c.Request.Context(), imageData, preText)
	if err != nil {
		slog.Warn("ブランド検出リクエストが不正", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "ブランド検出に失敗しました"})
		return
	}

	h.recordHistory(c, file.Filename, result)
	c.JSON(http.StatusOK, toDetectionResponse(result))
}

// recordHistory は検出結果を履歴に保存します。ベストエフォートです。
func (h *BrandDetectHandler) recordHistory(c *gin.Context, imageName string, result *entity.DetectionResult) {
	if h.history == nil {
		return
	}
	userID, ok := c.Get(jwtmw.ContextUserID)
	if !ok {
		return
	}
	uid, ok := userID.(uint)
	if !ok {
		return
	}
	if err := h.history.Record(c.Request.Context(), uid, imageName, result); err != nil {
		slog.Warn("検出履歴の保存に失敗", "error", err, "user_id", uid)
	}
}

// toDetectionResponse はドメインの検出結果をトランスポート形式に平坦化します。
func toDetectionResponse(result *entity.DetectionResult) api.DetectionResponse {
	matches := make([]api.BrandMatchResponse, 0, len(result.Matches))
	for _, m := range result.Matches {
		matched := m.MatchedText
		if matched == nil {
			matched = []string{}
		}
		matches = append(matches, api.BrandMatchResponse{
			Brand:       m.Brand,
			Confidence:  m.Confidence,
			Method:      m.Method.String(),
			MatchedText: matched,
		})
	}
	return api.DetectionResponse{
		Matches:             matches,
		TotalBrandsDetected: len(matches),
		DetectionMethod:     result.Method.String(),
		MinConfidenceUsed:   result.MinConfidence,
		Degraded:            result.Degraded,
	}
}

// ListCatalog はロード済みブランドカタログを返します。
//
// エンドポイント: GET /v1/brand/catalog
func (h *BrandDetectHandler) ListCatalog(c *gin.Context) {
	brands := h.cat.Brands()
	out := make([]api.CatalogBrandResponse, 0, len(brands))
	for _, b := range brands {
		out = append(out, api.CatalogBrandResponse{
			BrandID: b.ID,
			Name:    b.Name,
			Aliases: b.Aliases,
		})
	}
	c.JSON(http.StatusOK, out)
}

// RebuildIndex は埋め込みインデックスを明示的に再構築します。
//
// エンドポイント: POST /v1/brand/index/rebuild
func (h *BrandDetectHandler) RebuildIndex(c *gin.Context) {
	count, err := h.index.Rebuild(c.Request.Context())
	if err != nil {
		slog.Error("埋め込みインデックスの再構築に失敗", "error", err)
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "インデックスの再構築に失敗しました"})
		return
	}
	slog.Info("埋め込みインデックスを再構築しました", "brands", count)
	c.JSON(http.StatusOK, api.IndexRebuildResponse{BrandsIndexed: count})
}
