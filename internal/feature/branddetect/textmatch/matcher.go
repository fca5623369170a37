// Package textmatch はOCRテキストとブランドカタログの照合を提供します。
package textmatch

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"brand_backend/internal/feature/branddetect/catalog"
	"brand_backend/internal/feature/branddetect/domain/entity"
)

const (
	// MinTextLength はマッチング対象とする最小の非空白文字数です。
	MinTextLength = 2

	// 完全一致の信頼度: 0.75〜0.90。長いエイリアスほど偶発的な衝突が
	// 起きにくいため、長さに応じたボーナスを加算します。
	exactBase      = 0.75
	exactBonusCap  = 0.15
	exactLengthDiv = 30.0
	exactCeiling   = 0.90

	// あいまい一致の信頼度: 0.60〜0.70。
	fuzzyBase      = 0.60
	fuzzyBonusCap  = 0.10
	fuzzyLengthDiv = 40.0
	fuzzyCeiling   = 0.70

	// partialPenalty は単語レベルの部分一致に適用する減衰係数です。
	partialPenalty = 0.9

	// partialMinRatio は部分一致に必要な有意語の一致割合です。
	partialMinRatio = 0.5
)

// genericWords はあいまい一致で無視する汎用的な企業用語です。
// これらの語だけでの一致は誤検出につながるため、有意語から除外します。
var genericWords = map[string]struct{}{
	"product": {}, "products": {}, "india": {}, "consumer": {}, "limited": {},
	"ltd": {}, "company": {}, "co": {}, "pvt": {}, "private": {},
	"corporation": {}, "corp": {}, "industries": {}, "industry": {},
	"foods": {}, "food": {},
}

// ErrExtractorUnavailable はロゴテキスト抽出エンジンが構成されていない場合に返されます。
var ErrExtractorUnavailable = errors.New("logo text extractor unavailable")

// LogoTextExtractor はロゴのような装飾フォントに強いOCRエンジンを抽象化します。
// Goの慣例に従い、インターフェースは利用者（textmatch）側で定義します。
type LogoTextExtractor interface {
	// ExtractLogoText は画像からロゴ領域のテキストを抽出します。
	ExtractLogoText(ctx context.Context, imageData []byte) (string, error)
}

// aliasEntry は1エイリアス分の事前計算済みマッチング素材です。
type aliasEntry struct {
	raw   string
	lower string
	// wordRe は単語境界付き完全一致用のパターンです。
	wordRe *regexp.Regexp
	// words はストップリストと短語を除いた有意語です。
	words []string
}

// brandEntry は1ブランド分のマッチング素材です。
type brandEntry struct {
	brand   entity.Brand
	aliases []aliasEntry
}

// Matcher はカタログに対するテキストベースのブランド照合器です。
// 構築後は不変で、並行アクセスに対して安全です。
type Matcher struct {
	brands    []brandEntry
	extractor LogoTextExtractor
}

// New はカタログからMatcherを構築します。
// エイリアスの正規表現はリクエストごとではなく構築時に1度だけコンパイルします。
// extractorはnil可で、その場合MatchLogoTextはErrExtractorUnavailableを返します。
func New(cat *catalog.Catalog, extractor LogoTextExtractor) *Matcher {
	brands := make([]brandEntry, 0, cat.Len())
	for _, b := range cat.Brands() {
		// 正式名とエイリアス全てを照合対象とする（正式名が先）
		names := make([]string, 0, len(b.Aliases)+1)
		names = append(names, b.Name)
		names = append(names, b.Aliases...)

		entries := make([]aliasEntry, 0, len(names))
		seen := make(map[string]struct{}, len(names))
		for _, name := range names {
			lower := strings.ToLower(name)
			if _, dup := seen[lower]; dup {
				continue
			}
			seen[lower] = struct{}{}
			entries = append(entries, aliasEntry{
				raw:    name,
				lower:  lower,
				wordRe: regexp.MustCompile(`\b` + regexp.QuoteMeta(lower) + `\b`),
				words:  significantWords(lower),
			})
		}
		brands = append(brands, brandEntry{brand: b, aliases: entries})
	}
	return &Matcher{brands: brands, extractor: extractor}
}

// significantWords はエイリアスを単語に分割し、汎用語と2文字以下の語を除きます。
func significantWords(lower string) []string {
	var words []string
	for _, w := range strings.Fields(lower) {
		if len(w) <= 2 {
			continue
		}
		if _, generic := genericWords[w]; generic {
			continue
		}
		words = append(words, w)
	}
	return words
}

// Match はテキストに対してブランド候補を返します。
//
// エイリアスごとに 完全一致 → 部分文字列一致 → 単語レベル部分一致 の順で
// 評価し、最初に成立した戦略で確定します。ブランドにつき最初に一致した
// エイリアスのみが採用されるため、1回の呼び出しでブランドが複数回
// 現れることはありません。minConfidence未満の候補は返されません。
//
// 2非空白文字未満の入力はエラーではなく空を返します。
func (m *Matcher) Match(text string, minConfidence float64) []entity.Match {
	if utf8.RuneCountInString(strings.Join(strings.Fields(text), "")) < MinTextLength {
		return nil
	}
	textLower := strings.ToLower(text)

	var matches []entity.Match
	for _, be := range m.brands {
		if match, ok := m.matchBrand(be, textLower, minConfidence); ok {
			matches = append(matches, match)
		}
	}
	return matches
}

// matchBrand は1ブランドの全エイリアスを優先順に評価します。
// いずれかの戦略が成立した時点でそのエイリアスで確定し、以降は評価しません。
func (m *Matcher) matchBrand(be brandEntry, textLower string, minConfidence float64) (entity.Match, bool) {
	for _, alias := range be.aliases {
		// 戦略1: 単語境界付き完全一致
		if alias.wordRe.MatchString(textLower) {
			return makeMatch(be.brand, alias.raw, exactConfidence(alias.raw), entity.MethodTextExact, minConfidence)
		}

		// 戦略2: 部分文字列一致（OCRの分割ノイズで単語境界が壊れた場合を救う）
		if strings.Contains(textLower, alias.lower) {
			return makeMatch(be.brand, alias.raw, fuzzyConfidence(alias.raw), entity.MethodTextFuzzy, minConfidence)
		}

		// 戦略3: 単語レベル部分一致（有意語の過半数が個別に出現する場合）
		if len(alias.words) > 0 {
			hits := 0
			for _, w := range alias.words {
				if strings.Contains(textLower, w) {
					hits++
				}
			}
			if hits > 0 && float64(hits)/float64(len(alias.words)) >= partialMinRatio {
				conf := fuzzyConfidence(alias.raw) * partialPenalty
				return makeMatch(be.brand, alias.raw, conf, entity.MethodTextFuzzy, minConfidence)
			}
		}
	}
	return entity.Match{}, false
}

// makeMatch はしきい値を適用してMatchを生成します。
// 一致自体は成立しているため、しきい値未満でもエイリアス評価は打ち切ります。
// 信頼度はしきい値判定の前に小数第2位へ丸め、格納値と判定値を一致させます。
func makeMatch(b entity.Brand, matched string, confidence float64, method entity.Method, minConfidence float64) (entity.Match, bool) {
	confidence = math.Round(confidence*100) / 100
	if confidence < minConfidence {
		return entity.Match{}, false
	}
	return entity.Match{
		BrandID:     b.ID,
		Brand:       b.Name,
		Confidence:  confidence,
		Method:      method,
		MatchedText: []string{matched},
	}, true
}

// exactConfidence は完全一致の信頼度を計算します。上限0.90。
// 長さはバイト数ではなく文字数（ルーン数）で数え、非ASCIIエイリアスでも
// 同じ見た目の長さなら同じ信頼度になります。
func exactConfidence(alias string) float64 {
	bonus := math.Min(float64(utf8.RuneCountInString(alias))/exactLengthDiv*exactBonusCap, exactBonusCap)
	return math.Min(exactBase+bonus, exactCeiling)
}

// fuzzyConfidence はあいまい一致の信頼度を計算します。上限0.70。
// 同一エイリアスに対して常に完全一致より低くなります。
func fuzzyConfidence(alias string) float64 {
	bonus := math.Min(float64(utf8.RuneCountInString(alias))/fuzzyLengthDiv*fuzzyBonusCap, fuzzyBonusCap)
	return math.Min(fuzzyBase+bonus, fuzzyCeiling)
}

// MatchLogoText は装飾フォント向けOCRエンジンで画像からテキストを抽出し、
// その出力にMatchと同じロジックを適用します。別アルゴリズムではなく、
// 同一シグナルの独立した2サンプル目です。
func (m *Matcher) MatchLogoText(ctx context.Context, imageData []byte, minConfidence float64) ([]entity.Match, error) {
	if m.extractor == nil {
		return nil, ErrExtractorUnavailable
	}
	text, err := m.extractor.ExtractLogoText(ctx, imageData)
	if err != nil {
		return nil, err
	}
	return m.Match(text, minConfidence), nil
}
