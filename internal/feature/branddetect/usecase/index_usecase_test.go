package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"brand_backend/internal/feature/branddetect/catalog"
	"brand_backend/internal/feature/branddetect/embedindex"
)

// mockEmbedder はEmbedderのテスト用モックです。
type mockEmbedder struct {
	EmbedFunc func(ctx context.Context, imageData []byte) ([]float32, error)
	calls     int
}

func (m *mockEmbedder) Embed(ctx context.Context, imageData []byte) ([]float32, error) {
	m.calls++
	return m.EmbedFunc(ctx, imageData)
}

// newIndexTestCatalog はロゴ1枚を持つ1ブランドのカタログを構築します。
func newIndexTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	logosDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(logosDir, "amul"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(logosDir, "amul", "logo.png"), []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "brands.json")
	doc := `{"amul": {"name": "Amul", "aliases": ["Amul"]}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.Load(path, logosDir)
	if err != nil {
		t.Fatalf("failed to load test catalog: %v", err)
	}
	return cat
}

func TestIndexUsecase_Rebuild(t *testing.T) {
	cat := newIndexTestCatalog(t)
	embedder := &mockEmbedder{
		EmbedFunc: func(ctx context.Context, imageData []byte) ([]float32, error) {
			return []float32{3, 4}, nil
		},
	}
	store := embedindex.NewStore(nil, 0, "")
	provider := embedindex.NewProvider(nil)

	uc := NewIndexUsecase(cat, embedder, store, provider)
	count, err := uc.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if embedder.calls != 1 {
		t.Errorf("embedder call count = %d, want 1", embedder.calls)
	}

	// 新しいインデックスが公開されている
	idx := provider.Current()
	if idx.Len() != 1 || idx.Entries[0].BrandID != "amul" {
		t.Errorf("published index is wrong: %+v", idx)
	}
}

func TestIndexUsecase_Rebuild_NoEmbedder(t *testing.T) {
	cat := newIndexTestCatalog(t)
	provider := embedindex.NewProvider(nil)

	uc := NewIndexUsecase(cat, nil, embedindex.NewStore(nil, 0, ""), provider)
	if _, err := uc.Rebuild(context.Background()); err == nil {
		t.Fatal("expected error when embedder is not configured")
	}
	if provider.Current() != nil {
		t.Error("failed rebuild must not publish an index")
	}
}
