package embedindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"brand_backend/internal/feature/branddetect/catalog"
)

// mockEmbedder は画像内容ごとに固定ベクトルを返すEmbedderモックです。
type mockEmbedder struct {
	vectors map[string][]float32
	errs    map[string]error
}

func (m *mockEmbedder) Embed(ctx context.Context, imageData []byte) ([]float32, error) {
	key := string(imageData)
	if err, ok := m.errs[key]; ok {
		return nil, err
	}
	if vec, ok := m.vectors[key]; ok {
		// 呼び出し側の破壊的変更から素材を守る
		out := make([]float32, len(vec))
		copy(out, vec)
		return out, nil
	}
	return nil, fmt.Errorf("no vector for %q", key)
}

// newTestCatalog はブランドごとのロゴ画像（内容=埋め込みキー）を持つカタログを構築します。
func newTestCatalog(t *testing.T, logos map[string][]string) *catalog.Catalog {
	t.Helper()

	docs := "{"
	first := true
	logosDir := t.TempDir()
	for id, contents := range logos {
		if !first {
			docs += ","
		}
		first = false
		docs += fmt.Sprintf(`%q: {"name": %q, "aliases": [%q]}`, id, id, id)

		if len(contents) == 0 {
			continue
		}
		dir := filepath.Join(logosDir, id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		for i, content := range contents {
			path := filepath.Join(dir, fmt.Sprintf("logo%d.png", i))
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
	docs += "}"

	path := filepath.Join(t.TempDir(), "brands.json")
	if err := os.WriteFile(path, []byte(docs), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.Load(path, logosDir)
	if err != nil {
		t.Fatalf("failed to load test catalog: %v", err)
	}
	return cat
}

func TestBuild(t *testing.T) {
	cat := newTestCatalog(t, map[string][]string{
		"amul":  {"img-a1", "img-a2"},
		"parle": {"img-p1"},
	})
	embedder := &mockEmbedder{vectors: map[string][]float32{
		"img-a1": {1, 0},
		"img-a2": {0, 1},
		"img-p1": {0, 2},
	}}

	idx, err := Build(context.Background(), cat, embedder)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if idx.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", idx.Len())
	}

	// エントリはブランドID昇順
	if idx.Entries[0].BrandID != "amul" || idx.Entries[1].BrandID != "parle" {
		t.Fatalf("unexpected entry order: %q, %q", idx.Entries[0].BrandID, idx.Entries[1].BrandID)
	}

	// amul: mean([1,0],[0,1]) = [0.5,0.5] → 正規化で [1/√2, 1/√2]
	amul := idx.Entries[0]
	if amul.LogoCount != 2 {
		t.Errorf("LogoCount = %d, want 2", amul.LogoCount)
	}
	want := float32(1 / math.Sqrt2)
	for i, x := range amul.Vector {
		if math.Abs(float64(x-want)) > 1e-6 {
			t.Errorf("Vector[%d] = %v, want %v", i, x, want)
		}
	}

	// 全セントロイドは単位長
	for _, e := range idx.Entries {
		norm := math.Sqrt(float64(Dot(e.Vector, e.Vector)))
		if math.Abs(norm-1) > 1e-6 {
			t.Errorf("brand %s centroid norm = %v, want 1", e.BrandID, norm)
		}
	}
}

func TestBuild_SkipsBrandsWithoutLogos(t *testing.T) {
	cat := newTestCatalog(t, map[string][]string{
		"amul":    {"img-a"},
		"nologos": {},
	})
	embedder := &mockEmbedder{vectors: map[string][]float32{
		"img-a": {1, 0},
	}}

	idx, err := Build(context.Background(), cat, embedder)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if idx.Len() != 1 || idx.Entries[0].BrandID != "amul" {
		t.Errorf("brands without logos should be excluded: %+v", idx.Entries)
	}
}

func TestBuild_SkipsFailedLogos(t *testing.T) {
	cat := newTestCatalog(t, map[string][]string{
		"amul": {"img-ok", "img-bad"},
		"dead": {"img-dead"},
	})
	embedder := &mockEmbedder{
		vectors: map[string][]float32{"img-ok": {3, 4}},
		errs: map[string]error{
			"img-bad":  errors.New("embed failed"),
			"img-dead": errors.New("embed failed"),
		},
	}

	idx, err := Build(context.Background(), cat, embedder)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// 個々のロゴ失敗はスキップ、全滅したブランドは除外
	if idx.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", idx.Len())
	}
	amul := idx.Entries[0]
	if amul.BrandID != "amul" || amul.LogoCount != 1 {
		t.Errorf("unexpected entry: %+v", amul)
	}
}

func TestBuild_NilEmbedder(t *testing.T) {
	cat := newTestCatalog(t, map[string][]string{"amul": {"img-a"}})

	if _, err := Build(context.Background(), cat, nil); err == nil {
		t.Fatal("expected error for nil embedder")
	}
}

func TestIndex_Len_Nil(t *testing.T) {
	var idx *Index
	if idx.Len() != 0 {
		t.Errorf("nil index Len() = %d, want 0", idx.Len())
	}
}

func TestDot(t *testing.T) {
	if got := Dot([]float32{1, 2, 3}, []float32{4, 5, 6}); got != 32 {
		t.Errorf("Dot = %v, want 32", got)
	}
}

func TestNormalizeInPlace(t *testing.T) {
	v := []float32{3, 4}
	if !NormalizeInPlace(v) {
		t.Fatal("NormalizeInPlace returned false for nonzero vector")
	}
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("normalized = %v, want [0.6 0.8]", v)
	}

	if NormalizeInPlace([]float32{0, 0}) {
		t.Error("NormalizeInPlace should return false for zero vector")
	}
}

func TestProvider(t *testing.T) {
	p := NewProvider(nil)
	if p.Current() != nil {
		t.Error("Current() should be nil before first Publish")
	}

	first := &Index{}
	p.Publish(first)
	if p.Current() != first {
		t.Error("Current() should return the published index")
	}

	second := &Index{}
	p.Publish(second)
	if p.Current() != second {
		t.Error("Publish should atomically replace the snapshot")
	}
}
