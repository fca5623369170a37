// Package usecase はbranddetectフィーチャーのビジネスロジックを実装します。
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"brand_backend/internal/feature/branddetect/domain/entity"
)

const (
	// MaxImageSize は画像アップロードの最大サイズ（10MB）です。
	MaxImageSize = 10 * 1024 * 1024

	// DefaultOCRThreshold はテキスト結果を採用する信頼度しきい値です。
	DefaultOCRThreshold = 0.70
	// DefaultVisualThreshold は視覚照合の最小類似度です。
	DefaultVisualThreshold = 0.50
	// DefaultMinConfidence はテキスト照合の最小信頼度です。
	DefaultMinConfidence = 0.50
	// DefaultCallTimeout は外部サービス（OCR・埋め込み）1呼び出しの時間予算です。
	DefaultCallTimeout = 15 * time.Second
)

// TextMatcher はテキストベースのブランド照合を抽象化します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type TextMatcher interface {
	// Match はテキストに対するブランド候補を返します。
	Match(text string, minConfidence float64) []entity.Match
	// MatchLogoText はロゴ向けOCRエンジン経由で抽出したテキストを照合します。
	MatchLogoText(ctx context.Context, imageData []byte, minConfidence float64) ([]entity.Match, error)
}

// VisualMatcher は画像の視覚的ブランド照合を抽象化します。
type VisualMatcher interface {
	Match(ctx context.Context, imageData []byte, minConfidence float64) ([]entity.Match, error)
}

// TextExtractor は画像からの汎用テキスト抽出（一次OCR）を抽象化します。
type TextExtractor interface {
	ExtractText(ctx context.Context, imageData []byte) (string, error)
}

// Policy は検出パイプラインのしきい値設定です。
// ゼロ値のフィールドはデフォルト定数で補完されます。
type Policy struct {
	OCRThreshold    float64
	VisualThreshold float64
	MinConfidence   float64
	CallTimeout     time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.OCRThreshold <= 0 {
		p.OCRThreshold = DefaultOCRThreshold
	}
	if p.VisualThreshold <= 0 {
		p.VisualThreshold = DefaultVisualThreshold
	}
	if p.MinConfidence <= 0 {
		p.MinConfidence = DefaultMinConfidence
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = DefaultCallTimeout
	}
	return p
}

// detectUsecase はテキスト照合と視覚照合をしきい値ポリシーの下で
// 調停し、最終的なランク付け結果を生成します。
//
// 状態遷移は決定的な単一パスです:
//
//	テキスト試行 → {採用 | 視覚へエスカレート} → {視覚採用 | テキストへ縮退}
//
// 確信度の高いリテラルテキストは視覚類似度より強い証拠であり計算も
// 安価なため、しきい値以上なら高価な視覚経路を短絡します。
type detectUsecase struct {
	text      TextMatcher
	visual    VisualMatcher
	extractor TextExtractor
	policy    Policy
}

// NewDetectUsecase はdetectUsecaseの新しいインスタンスを生成します。
// extractorはnil可で、その場合は事前抽出テキストのみを使用します。
func NewDetectUsecase(text TextMatcher, visual VisualMatcher, extractor TextExtractor, policy Policy) *detectUsecase {
	return &detectUsecase{
		text:      text,
		visual:    visual,
		extractor: extractor,
		policy:    policy.withDefaults(),
	}
}

// Detect はハイブリッド検出パイプラインを実行します。
//
// サブマッチャーの実行時エラーは境界で捕捉され「その手法の一致0件」に
// 変換されます。もう一方の手法が答えられる限り、リクエスト全体を
// 失敗させることはありません。入力が構造的に不正な場合のみエラーを
// 返します。
func (u *detectUsecase) Detect(ctx context.Context, imageData []byte, preText string) (*entity.DetectionResult, error) {
	if len(imageData) == 0 && preText == "" {
		return nil, fmt.Errorf("image data or pre-extracted text is required")
	}
	if len(imageData) > MaxImageSize {
		return nil, fmt.Errorf("image size exceeds maximum of %d bytes", MaxImageSize)
	}

	// ステップ1: テキスト照合。事前抽出テキスト（なければ一次OCRで抽出）と
	// ロゴテキスト経路の2サンプルをプールして重複排除する。
	textMatches := u.gatherTextMatches(ctx, imageData, preText)

	if len(textMatches) > 0 && textMatches[0].Confidence >= u.policy.OCRThreshold {
		slog.Info("テキスト照合の信頼度がしきい値以上のため採用",
			"brand", textMatches[0].Brand, "confidence", textMatches[0].Confidence)
		return &entity.DetectionResult{
			Matches:       textMatches,
			Method:        entity.DetectionText,
			MinConfidence: u.policy.MinConfidence,
		}, nil
	}

	// ステップ2: 視覚照合へエスカレート。失敗は伝播させず、利用可能な
	// 最良の証拠としてテキスト結果へ縮退する。
	if len(imageData) == 0 {
		return u.degradedTextResult(textMatches), nil
	}

	vctx, cancel := context.WithTimeout(ctx, u.policy.CallTimeout)
	defer cancel()
	visualMatches, err := u.visual.Match(vctx, imageData, u.policy.VisualThreshold)
	if err != nil {
		slog.Warn("視覚照合が利用できないためテキスト結果へ縮退", "error", err)
		return u.degradedTextResult(textMatches), nil
	}
	if len(visualMatches) == 0 {
		slog.Info("視覚照合が0件のためテキスト結果へ縮退")
		return u.degradedTextResult(textMatches), nil
	}

	// 多ブランド間の埋め込み類似度はテキストよりノイズが多いため、
	// 低信頼度候補のロングテールではなく最上位1件のみを返す。
	top := visualMatches[0]
	slog.Info("視覚照合の結果を採用", "brand", top.Brand, "confidence", top.Confidence)
	return &entity.DetectionResult{
		Matches:       []entity.Match{top},
		Method:        entity.DetectionVisual,
		MinConfidence: u.policy.VisualThreshold,
	}, nil
}

// gatherTextMatches は2つの独立したテキストサンプルから候補をプールします。
// 各サンプルのエラー・タイムアウトは「その経路の一致0件」として扱います。
func (u *detectUsecase) gatherTextMatches(ctx context.Context, imageData []byte, preText string) []entity.Match {
	var pooled []entity.Match

	// サンプル1: 事前抽出テキスト。未提供で画像がある場合は一次OCRで抽出する。
	if preText == "" && len(imageData) > 0 && u.extractor != nil {
		ectx, cancel := context.WithTimeout(ctx, u.policy.CallTimeout)
		extracted, err := u.extractor.ExtractText(ectx, imageData)
		cancel()
		if err != nil {
			slog.Warn("一次OCRのテキスト抽出に失敗", "error", err)
		} else {
			preText = extracted
		}
	}
	if preText != "" {
		pooled = append(pooled, u.text.Match(preText, u.policy.MinConfidence)...)
	}

	// サンプル2: ロゴテキスト経路（装飾フォント向けエンジン）。
	if len(imageData) > 0 {
		lctx, cancel := context.WithTimeout(ctx, u.policy.CallTimeout)
		logoMatches, err := u.text.MatchLogoText(lctx, imageData, u.policy.MinConfidence)
		cancel()
		if err != nil {
			slog.Warn("ロゴテキスト照合に失敗", "error", err)
		} else {
			pooled = append(pooled, logoMatches...)
		}
	}

	merged := Deduplicate(pooled)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Confidence > merged[j].Confidence
	})
	return merged
}

// degradedTextResult はしきい値未満でも手元のテキスト結果を返します。
// 「常に答える」契約のため、空の結果より利用可能な最良の証拠を優先します。
// Degradedフラグにより、呼び出し側は確信のある結果と区別できます。
func (u *detectUsecase) degradedTextResult(textMatches []entity.Match) *entity.DetectionResult {
	return &entity.DetectionResult{
		Matches:       textMatches,
		Method:        entity.DetectionText,
		MinConfidence: u.policy.MinConfidence,
		Degraded:      true,
	}
}

// Deduplicate はブランドIDでグループ化し、グループ内で信頼度が厳密に
// 高いMatchを残します。同点は先に現れたものを保持します。これにより
// 返却結果に同一ブランドが高々1件しか現れないことが保証されます。
func Deduplicate(matches []entity.Match) []entity.Match {
	if len(matches) == 0 {
		return nil
	}

	best := make(map[string]int, len(matches))
	var order []int
	for i, m := range matches {
		if j, ok := best[m.BrandID]; ok {
			if m.Confidence > matches[j].Confidence {
				best[m.BrandID] = i
			}
			continue
		}
		best[m.BrandID] = i
		order = append(order, i)
	}

	out := make([]entity.Match, 0, len(order))
	for _, i := range order {
		out = append(out, matches[best[matches[i].BrandID]])
	}
	return out
}
