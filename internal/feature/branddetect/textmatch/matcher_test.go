package textmatch

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"brand_backend/internal/feature/branddetect/catalog"
	"brand_backend/internal/feature/branddetect/domain/entity"
)

// newTestCatalog はJSONドキュメントからテスト用カタログを構築します。
func newTestCatalog(t *testing.T, doc string) *catalog.Catalog {
	t.Helper()

	path := filepath.Join(t.TempDir(), "brands.json")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.Load(path, t.TempDir())
	if err != nil {
		t.Fatalf("failed to load test catalog: %v", err)
	}
	return cat
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMatcher_Match_TooShortInput(t *testing.T) {
	m := New(newTestCatalog(t, `{"amul":{"name":"Amul","aliases":["Amul"]}}`), nil)

	// 「é」は2バイトだが1文字なので短すぎる入力として扱う
	for _, text := range []string{"", "a", "  a  ", "\t\n", "é"} {
		if got := m.Match(text, 0.5); got != nil {
			t.Errorf("Match(%q) = %v, want nil", text, got)
		}
	}
}

func TestMatcher_Match_Exact(t *testing.T) {
	m := New(newTestCatalog(t, `{"amul":{"name":"Amul","aliases":["Amul","Amul Butter"]}}`), nil)

	matches := m.Match("Amul Butter 500g", 0.5)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}

	got := matches[0]
	if got.BrandID != "amul" || got.Method != entity.MethodTextExact {
		t.Errorf("unexpected match: %+v", got)
	}
	// 長さ4のエイリアス: 0.75 + 4/30*0.15 = 0.77
	if !almostEqual(got.Confidence, 0.77) {
		t.Errorf("Confidence = %v, want 0.77", got.Confidence)
	}
	if len(got.MatchedText) != 1 || got.MatchedText[0] != "Amul" {
		t.Errorf("MatchedText = %v, want [Amul]", got.MatchedText)
	}
}

func TestMatcher_Match_ExactLengthBonus(t *testing.T) {
	m := New(newTestCatalog(t, `{
		"hul": {"name": "Hindustan Unilever", "aliases": ["Hindustan Unilever"]},
		"long": {"name": "An Extraordinarily Long Brand Name", "aliases": ["An Extraordinarily Long Brand Name"]}
	}`), nil)

	t.Run("bonus scales with alias length", func(t *testing.T) {
		matches := m.Match("hindustan unilever", 0.5)
		if len(matches) != 1 {
			t.Fatalf("got %d matches, want 1", len(matches))
		}
		// 長さ18: 0.75 + 18/30*0.15 = 0.84
		if !almostEqual(matches[0].Confidence, 0.84) {
			t.Errorf("Confidence = %v, want 0.84", matches[0].Confidence)
		}
	})

	t.Run("capped at 0.90", func(t *testing.T) {
		matches := m.Match("an extraordinarily long brand name", 0.5)
		if len(matches) != 1 {
			t.Fatalf("got %d matches, want 1", len(matches))
		}
		if !almostEqual(matches[0].Confidence, 0.90) {
			t.Errorf("Confidence = %v, want cap 0.90", matches[0].Confidence)
		}
	})
}

func TestMatcher_Match_FuzzySubstring(t *testing.T) {
	m := New(newTestCatalog(t, `{"amul":{"name":"Amul","aliases":["Amul"]}}`), nil)

	// OCRノイズで単語境界が壊れたケース
	matches := m.Match("xxamulxx fresh", 0.5)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}

	got := matches[0]
	if got.Method != entity.MethodTextFuzzy {
		t.Errorf("Method = %v, want text_fuzzy", got.Method)
	}
	// 長さ4: 0.60 + 4/40*0.10 = 0.61
	if !almostEqual(got.Confidence, 0.61) {
		t.Errorf("Confidence = %v, want 0.61", got.Confidence)
	}

	// あいまい一致は同一エイリアスの完全一致より常に低い
	exact := m.Match("amul fresh", 0.5)
	if exact[0].Confidence <= got.Confidence {
		t.Errorf("exact %v should exceed fuzzy %v", exact[0].Confidence, got.Confidence)
	}
}

func TestMatcher_Match_WordPartial(t *testing.T) {
	m := New(newTestCatalog(t, `{"himalaya":{"name":"Himalaya Wellness","aliases":["Himalaya Wellness"]}}`), nil)

	// 有意語2語中1語のみ出現（ちょうど50%）
	matches := m.Match("wellness range on sale", 0.5)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}

	got := matches[0]
	if got.Method != entity.MethodTextFuzzy {
		t.Errorf("Method = %v, want text_fuzzy", got.Method)
	}
	// fuzzy(長さ17) * 0.9 = (0.60 + 17/40*0.10) * 0.9 = 0.57825 → 丸めて0.58
	if !almostEqual(got.Confidence, 0.58) {
		t.Errorf("Confidence = %v, want 0.58", got.Confidence)
	}
}

func TestMatcher_Match_MultiByteAlias(t *testing.T) {
	m := New(newTestCatalog(t, `{"muller":{"name":"Müller","aliases":["Müller"]}}`), nil)

	matches := m.Match("müller milk", 0.5)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}

	// 「Müller」は7バイトだが6文字: 0.75 + 6/30*0.15 = 0.78
	if !almostEqual(matches[0].Confidence, 0.78) {
		t.Errorf("Confidence = %v, want 0.78", matches[0].Confidence)
	}
}

func TestMatcher_Match_GenericWordsIgnored(t *testing.T) {
	m := New(newTestCatalog(t, `{"generic":{"name":"Consumer Foods Limited","aliases":["Consumer Foods Limited"]}}`), nil)

	// 全ての語が汎用語なので、単語レベル部分一致は成立しない
	if got := m.Match("consumer foods on shelf", 0.5); got != nil {
		t.Errorf("generic-only words should not match, got %v", got)
	}
}

func TestMatcher_Match_OneMatchPerBrand(t *testing.T) {
	m := New(newTestCatalog(t, `{"amul":{"name":"Amul","aliases":["Amul","Amul Taaza"]}}`), nil)

	// 両エイリアスが出現しても、ブランドにつき最初の一致のみ採用される
	matches := m.Match("amul taaza and amul butter", 0.5)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].MatchedText[0] != "Amul" {
		t.Errorf("MatchedText = %v, want first alias Amul", matches[0].MatchedText)
	}
}

func TestMatcher_Match_MinConfidence(t *testing.T) {
	m := New(newTestCatalog(t, `{"amul":{"name":"Amul","aliases":["Amul"]}}`), nil)

	// 完全一致0.77はしきい値0.80未満なので返されない
	if got := m.Match("amul fresh", 0.80); got != nil {
		t.Errorf("matches below minConfidence should be dropped, got %v", got)
	}
}

func TestMatcher_Match_MultipleBrands(t *testing.T) {
	m := New(newTestCatalog(t, `{
		"amul": {"name": "Amul", "aliases": ["Amul"]},
		"parle": {"name": "Parle", "aliases": ["Parle", "Parle-G"]}
	}`), nil)

	matches := m.Match("amul butter and parle biscuits", 0.5)
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	seen := map[string]bool{}
	for _, match := range matches {
		seen[match.BrandID] = true
	}
	if !seen["amul"] || !seen["parle"] {
		t.Errorf("unexpected brands: %v", seen)
	}
}

// mockExtractor はLogoTextExtractorのテスト用モックです。
type mockExtractor struct {
	ExtractLogoTextFunc func(ctx context.Context, imageData []byte) (string, error)
	calls               int
}

func (m *mockExtractor) ExtractLogoText(ctx context.Context, imageData []byte) (string, error) {
	m.calls++
	return m.ExtractLogoTextFunc(ctx, imageData)
}

func TestMatcher_MatchLogoText(t *testing.T) {
	cat := newTestCatalog(t, `{"amul":{"name":"Amul","aliases":["Amul"]}}`)

	t.Run("extractor output goes through the same matching", func(t *testing.T) {
		ext := &mockExtractor{
			ExtractLogoTextFunc: func(ctx context.Context, imageData []byte) (string, error) {
				return "AMUL", nil
			},
		}
		m := New(cat, ext)

		matches, err := m.MatchLogoText(context.Background(), []byte("img"), 0.5)
		if err != nil {
			t.Fatalf("MatchLogoText() error = %v", err)
		}
		if len(matches) != 1 || matches[0].BrandID != "amul" {
			t.Errorf("unexpected matches: %v", matches)
		}
		if ext.calls != 1 {
			t.Errorf("extractor call count = %d, want 1", ext.calls)
		}
	})

	t.Run("nil extractor", func(t *testing.T) {
		m := New(cat, nil)

		_, err := m.MatchLogoText(context.Background(), []byte("img"), 0.5)
		if !errors.Is(err, ErrExtractorUnavailable) {
			t.Errorf("error = %v, want ErrExtractorUnavailable", err)
		}
	})

	t.Run("extractor error propagates", func(t *testing.T) {
		wantErr := errors.New("ocr down")
		m := New(cat, &mockExtractor{
			ExtractLogoTextFunc: func(ctx context.Context, imageData []byte) (string, error) {
				return "", wantErr
			},
		})

		_, err := m.MatchLogoText(context.Background(), []byte("img"), 0.5)
		if !errors.Is(err, wantErr) {
			t.Errorf("error = %v, want %v", err, wantErr)
		}
	})
}
