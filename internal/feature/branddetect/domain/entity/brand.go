// Package entity はbranddetectフィーチャーのドメインモデルを定義します。
package entity

// Brand はカタログに登録されたブランドを表します。
// ロード後は不変で、全リクエスト間で共有されます。
type Brand struct {
	// ID はカタログ内で一意なブランド識別子です。
	ID string
	// Name はブランドの正式表示名です。
	Name string
	// Aliases はマッチングに使用する別表記のリストです。
	// ロード時の修復処理により、空になることはありません。
	Aliases []string
}

// LogoReference はブランドに紐づく参照ロゴ画像を表します。
// ロゴを持たないブランドはテキストマッチングのみに参加します。
type LogoReference struct {
	BrandID string
	Path    string
}

// BrandEmbedding はブランドの参照ロゴ群から導出された集約埋め込みです。
// 各ロゴの埋め込みを算術平均し、単位長に再正規化したものです。
type BrandEmbedding struct {
	BrandID   string
	Name      string
	Vector    []float32
	LogoCount int
}
