// Package catalog はブランド参照データのロードと検証を提供します。
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"brand_backend/internal/feature/branddetect/domain/entity"
)

// Error はカタログの必須フィールド欠落など、修復不能な不正を表します。
// ロード時点で致命的であり、リクエスト処理中に回復されることはありません。
type Error struct {
	BrandID string
	Reason  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("brand catalog: brand %q: %s", e.BrandID, e.Reason)
}

// brandDoc はbrands.jsonの1エントリのワイヤフォーマットです。
type brandDoc struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

// defaultBrands はカタログファイルが存在しない場合のフォールバックセットです。
// カタログなしでサービスを落とすのではなく、縮退モードで稼働させるためのものです。
var defaultBrands = map[string]brandDoc{
	"amul":       {Name: "Amul", Aliases: []string{"Amul"}},
	"parle":      {Name: "Parle", Aliases: []string{"Parle", "Parle-G", "Parle G"}},
	"britannia":  {Name: "Britannia", Aliases: []string{"Britannia"}},
	"nestle":     {Name: "Nestlé", Aliases: []string{"Nestle", "Nestlé"}},
	"aashirvaad": {Name: "Aashirvaad", Aliases: []string{"Aashirvaad", "ITC"}},
	"hul":        {Name: "Hindustan Unilever", Aliases: []string{"HUL", "Hindustan Unilever", "Unilever"}},
	"dabur":      {Name: "Dabur", Aliases: []string{"Dabur"}},
	"patanjali":  {Name: "Patanjali", Aliases: []string{"Patanjali"}},
	"godrej":     {Name: "Godrej", Aliases: []string{"Godrej"}},
	"marico":     {Name: "Marico", Aliases: []string{"Marico"}},
	"colgate":    {Name: "Colgate", Aliases: []string{"Colgate"}},
	"himalaya":   {Name: "Himalaya", Aliases: []string{"Himalaya"}},
	"cocacola":   {Name: "Coca-Cola", Aliases: []string{"Coca Cola", "Coca-Cola", "Coke"}},
	"pepsi":      {Name: "PepsiCo", Aliases: []string{"Pepsi", "PepsiCo"}},
}

// logoExtensions は参照ロゴ画像として認識する拡張子です。
var logoExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".webp": {},
}

// Catalog はロード済みのブランド参照データの不変スナップショットです。
// ロード後の変更は行われないため、ロックなしで全リクエスト間で共有できます。
type Catalog struct {
	brands   []entity.Brand
	byID     map[string]entity.Brand
	logosDir string
	version  string
}

// Load はpathのJSONドキュメントからカタログをロードします。
//
// 許容ロードポリシー:
//   - nameを欠くエントリは*Errorで失敗します。
//   - aliasesを欠くエントリは aliases = [name] に修復されます（失敗にはしません）。
//   - ファイル自体が存在しない場合は組み込みのデフォルトセットにフォールバックし、
//     次回以降のために同じパスへ書き戻します。
//
// logosDirは参照ロゴ画像のルートディレクトリです（logosDir/<brand_id>/*.png等）。
func Load(path, logosDir string) (*Catalog, error) {
	docs, err := readBrandFile(path)
	if err != nil {
		return nil, err
	}

	brands := make([]entity.Brand, 0, len(docs))
	byID := make(map[string]entity.Brand, len(docs))
	for id, doc := range docs {
		if doc.Name == "" {
			return nil, &Error{BrandID: id, Reason: "missing required 'name' field"}
		}
		aliases := doc.Aliases
		if len(aliases) == 0 {
			slog.Warn("ブランドにaliasesがないため表示名で補完します", "brand_id", id)
			aliases = []string{doc.Name}
		}
		b := entity.Brand{ID: id, Name: doc.Name, Aliases: aliases}
		brands = append(brands, b)
		byID[id] = b
	}

	// mapの反復順序は不定なので、スナップショットの走査順をIDで固定する
	sort.Slice(brands, func(i, j int) bool { return brands[i].ID < brands[j].ID })

	version, err := versionHash(brands)
	if err != nil {
		return nil, fmt.Errorf("failed to compute catalog version: %w", err)
	}

	slog.Info("ブランドカタログをロードしました", "brands", len(brands), "version", version[:12])
	return &Catalog{brands: brands, byID: byID, logosDir: logosDir, version: version}, nil
}

// readBrandFile はbrands.jsonを読み込み、欠落時はデフォルトセットを返します。
func readBrandFile(path string) (map[string]brandDoc, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("カタログファイルが見つからないためデフォルトセットを使用します", "path", path)
		persistDefaults(path)
		return defaultBrands, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read brand catalog %s: %w", path, err)
	}

	var docs map[string]brandDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("invalid brand catalog %s: %w", path, err)
	}
	return docs, nil
}

// persistDefaults はデフォルトカタログをpathへ書き戻します。ベストエフォートです。
func persistDefaults(path string) {
	data, err := json.MarshalIndent(defaultBrands, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.Warn("デフォルトカタログの書き戻しに失敗", "path", path, "error", err)
		return
	}
	slog.Info("デフォルトカタログを作成しました", "path", path)
}

// versionHash はカタログ内容から決定的なバージョン識別子を導出します。
// 埋め込みキャッシュのキーとして使用されます。
func versionHash(brands []entity.Brand) (string, error) {
	canonical, err := json.Marshal(brands)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Brands はID昇順のブランド一覧を返します。返り値を変更してはいけません。
func (c *Catalog) Brands() []entity.Brand {
	return c.brands
}

// Find はIDでブランドを検索します。
func (c *Catalog) Find(id string) (entity.Brand, bool) {
	b, ok := c.byID[id]
	return b, ok
}

// Len はカタログ内のブランド数を返します。
func (c *Catalog) Len() int {
	return len(c.brands)
}

// Version はカタログ内容のハッシュを返します。
func (c *Catalog) Version() string {
	return c.version
}

// LogoRefs は指定ブランドの参照ロゴ画像を列挙します。
// ディレクトリが存在しない場合は空を返します（ロゴなしはエラーではありません）。
func (c *Catalog) LogoRefs(brandID string) []entity.LogoReference {
	dir := filepath.Join(c.logosDir, brandID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var refs []entity.LogoReference
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if _, ok := logoExtensions[ext]; !ok {
			continue
		}
		refs = append(refs, entity.LogoReference{
			BrandID: brandID,
			Path:    filepath.Join(dir, e.Name()),
		})
	}
	return refs
}
