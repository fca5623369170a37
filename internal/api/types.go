// Package api はHTTPトランスポートのリクエスト/レスポンスDTOを定義します。
package api

// ErrorResponse は全エンドポイント共通のエラーレスポンスです。
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse は単純な成功メッセージのレスポンスです。
type MessageResponse struct {
	Message string `json:"message"`
}

// SignupRequest はユーザー登録リクエストです。
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest はログインリクエストです。
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse はログイン成功時のJWTトークンレスポンスです。
type TokenResponse struct {
	Token string `json:"token"`
}

// BrandMatchResponse は検出された1ブランド候補です。
type BrandMatchResponse struct {
	Brand      string  `json:"brand"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
	// MatchedText は一致したエイリアス文字列です。視覚的一致では空配列になります。
	MatchedText []string `json:"matched_text"`
}

// DetectionResponse はブランド検出エンドポイントのレスポンスです。
type DetectionResponse struct {
	Matches             []BrandMatchResponse `json:"matches"`
	TotalBrandsDetected int                  `json:"total_brands_detected"`
	DetectionMethod     string               `json:"detection_method"`
	MinConfidenceUsed   float64              `json:"min_confidence_used"`
	// Degraded は通常の採用しきい値を満たせずフォールバックとして
	// 返された結果であることを示します。
	Degraded bool `json:"degraded"`
}

// CatalogBrandResponse はカタログ内の1ブランドです。
type CatalogBrandResponse struct {
	BrandID string   `json:"brand_id"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

// IndexRebuildResponse は埋め込みインデックス再構築のレスポンスです。
type IndexRebuildResponse struct {
	BrandsIndexed int `json:"brands_indexed"`
}

// HistoryEntryResponse は検出履歴の1件です。
type HistoryEntryResponse struct {
	ID              uint   `json:"id"`
	ImageName       string `json:"image_name"`
	DetectionMethod string `json:"detection_method"`
	Results         string `json:"results"`
	CreatedAt       string `json:"created_at"`
}
