// Package embedindex はブランドごとの集約ロゴ埋め込みインデックスを提供します。
package embedindex

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"brand_backend/internal/feature/branddetect/catalog"
	"brand_backend/internal/feature/branddetect/domain/entity"
)

// maxConcurrentEmbeds はインデックス構築時の埋め込みAPI同時呼び出し数の上限です。
const maxConcurrentEmbeds = 4

// Embedder は画像から固定長の埋め込みベクトルを計算するサービスを抽象化します。
// Goの慣例に従い、インターフェースは利用者（embedindex）側で定義します。
type Embedder interface {
	// Embed は画像バイト列の埋め込みベクトルを返します。
	Embed(ctx context.Context, imageData []byte) ([]float32, error)
}

// Index はブランドごとに1本の単位正規化済み埋め込みを保持する不変スナップショットです。
// 構築後の変更は行われないため、ロックなしで全リクエスト間で共有できます。
type Index struct {
	// Entries はブランドID昇順の埋め込みエントリです。
	// 参照ロゴを1枚も持たないブランドはインデックスに含まれません。
	Entries []entity.BrandEmbedding
}

// Len はインデックス内のブランド数を返します。
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.Entries)
}

// Build はカタログの全ブランドについて参照ロゴを個別に埋め込み、
// 算術平均を単位長に再正規化したセントロイドを構築します。
// 複数のロゴバリアント（サイズ・配色違い）の平均は、単一の参照より
// 頑健な代表ベクトルになります。
//
// ロゴを持たないブランドはスキップされます（エラーではありません）。
// 埋め込みが1件も得られなかった場合のみエラーを返します。
func Build(ctx context.Context, cat *catalog.Catalog, embedder Embedder) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	idx := &Index{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentEmbeds)

	for _, b := range cat.Brands() {
		refs := cat.LogoRefs(b.ID)
		if len(refs) == 0 {
			slog.Debug("参照ロゴがないためインデックスから除外", "brand_id", b.ID)
			continue
		}

		g.Go(func() error {
			emb, err := buildBrand(gctx, b, refs, embedder)
			if err != nil {
				return err
			}
			if emb == nil {
				return nil
			}
			mu.Lock()
			idx.Entries = append(idx.Entries, *emb)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 並行構築で順序が崩れるため、走査順をブランドIDで固定する
	sortEntries(idx.Entries)
	slog.Info("埋め込みインデックスを構築しました", "brands", idx.Len())
	return idx, nil
}

// buildBrand は1ブランド分のロゴ群を埋め込み、セントロイドを計算します。
// 個々のロゴの読み込み・埋め込み失敗はスキップし、1枚も成功しなかった
// 場合はそのブランドを除外します（nil, nil）。
func buildBrand(ctx context.Context, b entity.Brand, refs []entity.LogoReference, embedder Embedder) (*entity.BrandEmbedding, error) {
	var vectors [][]float32
	for _, ref := range refs {
		data, err := os.ReadFile(ref.Path)
		if err != nil {
			slog.Warn("参照ロゴの読み込みに失敗", "path", ref.Path, "error", err)
			continue
		}
		vec, err := embedder.Embed(ctx, data)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("embedding cancelled for brand %s: %w", b.ID, err)
			}
			slog.Warn("参照ロゴの埋め込みに失敗", "path", ref.Path, "error", err)
			continue
		}
		if len(vec) > 0 {
			vectors = append(vectors, vec)
		}
	}
	if len(vectors) == 0 {
		slog.Warn("有効な埋め込みが得られなかったためブランドを除外", "brand_id", b.ID)
		return nil, nil
	}

	centroid, err := meanVector(vectors)
	if err != nil {
		return nil, fmt.Errorf("failed to average embeddings for brand %s: %w", b.ID, err)
	}
	if !NormalizeInPlace(centroid) {
		slog.Warn("セントロイドのノルムが0のためブランドを除外", "brand_id", b.ID)
		return nil, nil
	}

	return &entity.BrandEmbedding{
		BrandID:   b.ID,
		Name:      b.Name,
		Vector:    centroid,
		LogoCount: len(vectors),
	}, nil
}

// meanVector は同一次元のベクトル群の算術平均を返します。
func meanVector(vectors [][]float32) ([]float32, error) {
	dim := len(vectors[0])
	mean := make([]float32, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(v), dim)
		}
		for i, x := range v {
			mean[i] += x
		}
	}
	inv := 1 / float32(len(vectors))
	for i := range mean {
		mean[i] *= inv
	}
	return mean, nil
}

// Dot は2本のベクトルの内積を返します。
// 両者が単位長であればコサイン類似度に一致します。
// 長さが等しいことは呼び出し側の責任です。
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// NormalizeInPlace はベクトルをその場でL2正規化します。
// ノルムが0の場合はfalseを返します。
func NormalizeInPlace(v []float32) bool {
	norm2 := Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := 1 / float32(math.Sqrt(float64(norm2)))
	for i := range v {
		v[i] *= inv
	}
	return true
}

func sortEntries(entries []entity.BrandEmbedding) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].BrandID < entries[j].BrandID })
}
