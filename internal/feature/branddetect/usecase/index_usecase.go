package usecase

import (
	"context"
	"fmt"
	"sync"

	"brand_backend/internal/feature/branddetect/catalog"
	"brand_backend/internal/feature/branddetect/embedindex"
)

// indexUsecase は埋め込みインデックスの明示的な再構築を提供します。
// 再構築は稀で高価な排他操作です。新しいインデックスを脇で構築して
// からアトミックに公開するため、進行中の検出リクエストには影響しません。
type indexUsecase struct {
	mu       sync.Mutex
	cat      *catalog.Catalog
	embedder embedindex.Embedder
	store    *embedindex.Store
	provider *embedindex.Provider
}

// NewIndexUsecase はindexUsecaseの新しいインスタンスを生成します。
func NewIndexUsecase(cat *catalog.Catalog, embedder embedindex.Embedder, store *embedindex.Store, provider *embedindex.Provider) *indexUsecase {
	return &indexUsecase{cat: cat, embedder: embedder, store: store, provider: provider}
}

// Rebuild はカタログの全参照ロゴを再埋め込みして新しいインデックスを
// 構築・公開し、キャッシュを更新します。公開されたブランド数を返します。
// 同時呼び出しは直列化されます。
func (u *indexUsecase) Rebuild(ctx context.Context) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.embedder == nil {
		return 0, fmt.Errorf("embedding service is not configured")
	}

	idx, err := embedindex.Build(ctx, u.cat, u.embedder)
	if err != nil {
		return 0, fmt.Errorf("failed to rebuild embedding index: %w", err)
	}

	u.provider.Publish(idx)
	u.store.Save(ctx, u.cat.Version(), idx)
	return idx.Len(), nil
}
