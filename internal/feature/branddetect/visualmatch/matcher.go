// Package visualmatch は埋め込み類似度によるブランドの視覚的照合を提供します。
package visualmatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"brand_backend/internal/feature/branddetect/domain/entity"
	"brand_backend/internal/feature/branddetect/embedindex"
)

// ErrEmbeddingUnavailable はインデックスが空、またはクエリ画像の埋め込みが
// 計算できない場合に返されます。視覚照合はこのコンポーネント内に代替
// シグナルを持たないため、黙ってデフォルトにせず報告します。
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// Matcher は画像からブランド候補を返す視覚照合のケイパビリティです。
// 照合機能が構成できない環境ではDisabledを使用します。
type Matcher interface {
	// Match は画像をインデックスと照合し、類似度降順の候補を返します。
	Match(ctx context.Context, imageData []byte, minConfidence float64) ([]entity.Match, error)
}

// EmbeddingMatcher はクエリ画像の埋め込みをインデックス内の全ブランドと
// コサイン類似度で比較するMatcher実装です。
type EmbeddingMatcher struct {
	provider *embedindex.Provider
	embedder embedindex.Embedder
}

// EmbeddingMatcherがMatcherを実装していることをコンパイル時に検証します。
var _ Matcher = (*EmbeddingMatcher)(nil)

// New はEmbeddingMatcherの新しいインスタンスを生成します。
func New(provider *embedindex.Provider, embedder embedindex.Embedder) *EmbeddingMatcher {
	return &EmbeddingMatcher{provider: provider, embedder: embedder}
}

// Match はクエリ画像の埋め込みを計算し、インデックス内の全ブランドを
// コサイン類似度（単位ベクトル同士の内積）の降順にランク付けして、
// minConfidence以上の候補を返します。信頼度は小数第2位に丸めます。
func (m *EmbeddingMatcher) Match(ctx context.Context, imageData []byte, minConfidence float64) ([]entity.Match, error) {
	idx := m.provider.Current()
	if idx.Len() == 0 {
		return nil, fmt.Errorf("embedding index is empty: %w", ErrEmbeddingUnavailable)
	}

	query, err := m.embedder.Embed(ctx, imageData)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query image: %w: %v", ErrEmbeddingUnavailable, err)
	}
	if !embedindex.NormalizeInPlace(query) {
		return nil, fmt.Errorf("query embedding has zero norm: %w", ErrEmbeddingUnavailable)
	}

	matches := make([]entity.Match, 0, idx.Len())
	for _, e := range idx.Entries {
		// 埋め込みモデルの変更などで次元が食い違ったインデックスとは比較できない
		if len(e.Vector) != len(query) {
			return nil, fmt.Errorf("embedding dimension mismatch: query %d, index %d: %w",
				len(query), len(e.Vector), ErrEmbeddingUnavailable)
		}
		sim := roundConfidence(float64(embedindex.Dot(query, e.Vector)))
		if sim < minConfidence {
			continue
		}
		matches = append(matches, entity.Match{
			BrandID:    e.BrandID,
			Brand:      e.Name,
			Confidence: sim,
			Method:     entity.MethodVisual,
			// 視覚的一致はテキスト根拠を持たない
			MatchedText: nil,
		})
	}

	// 同スコアはインデックス順（ブランドID昇順）を保つ
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	return matches, nil
}

// roundConfidence は類似度を小数第2位に丸めます。
func roundConfidence(v float64) float64 {
	return math.Round(v*100) / 100
}

// Disabled は視覚照合が構成されていない環境向けのMatcher実装です。
// 常にErrEmbeddingUnavailableを返すため、検出ユースケースのフォールバック分岐が
// 例外経路ではなくインターフェースの通常ケースとして扱えます。
type Disabled struct{}

// DisabledがMatcherを実装していることをコンパイル時に検証します。
var _ Matcher = Disabled{}

// Match は常にErrEmbeddingUnavailableを返します。
func (Disabled) Match(ctx context.Context, imageData []byte, minConfidence float64) ([]entity.Match, error) {
	return nil, ErrEmbeddingUnavailable
}
